package scene

import (
	"fmt"

	"github.com/annel0/commoncore/internal/forms"
	"github.com/annel0/commoncore/internal/restorable"
)

// Graph живая иерархия объектов одной сцены.
// Корень соответствует контроллеру сцены и сам в поиске не участвует.
type Graph struct {
	name string
	root *Node
}

// NewGraph создаёт пустую сцену
func NewGraph(name string) *Graph {
	g := &Graph{name: name}
	g.root = NewNode(name)
	g.root.graph = g
	return g
}

func (g *Graph) Name() string { return g.name }
func (g *Graph) Root() *Node  { return g.root }

// Add добавляет объект в корень сцены
func (g *Graph) Add(n *Node) *Node {
	return g.root.AddChild(n)
}

// FindByName ищет объект по точному имени в ширину по всей иерархии.
// При совпадении имён возвращается ближайший к корню объект.
func (g *Graph) FindByName(name string) (*Node, bool) {
	return g.find(func(n *Node) bool { return n.name == name })
}

// FindByTag ищет первый объект с тегом
func (g *Graph) FindByTag(tag string) (*Node, bool) {
	if tag == "" {
		return nil, false
	}
	return g.find(func(n *Node) bool { return n.tag == tag })
}

func (g *Graph) find(match func(*Node) bool) (*Node, bool) {
	queue := append([]*Node(nil), g.root.children...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if match(n) {
			return n, true
		}
		queue = append(queue, n.children...)
	}
	return nil, false
}

// Walk обходит иерархию в глубину (без корня)
func (g *Graph) Walk(fn func(n *Node, depth int)) {
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		fn(n, depth)
		for _, c := range n.children {
			walk(c, depth+1)
		}
	}
	for _, c := range g.root.children {
		walk(c, 0)
	}
}

// Restorables собирает восстанавливаемые компоненты обходом в глубину
func (g *Graph) Restorables() []restorable.Component {
	var out []restorable.Component
	g.Walk(func(n *Node, _ int) {
		if n.component != nil {
			out = append(out, n.component)
		}
	})
	return out
}

// Spawn создаёт экземпляр шаблона в корне сцены под именем name.
// Компонент навешивается, только если шаблон его объявляет.
func (g *Graph) Spawn(form *forms.Form, name string) (*Node, error) {
	if form == nil {
		return nil, fmt.Errorf("шаблон для %s не задан", name)
	}

	n := NewNode(name)
	n.tag = form.Tag
	n.SetTransform(form.Transform)
	n.SetData(form.Data)

	if form.Restorable.Valid() {
		if err := n.Attach(form.Restorable, form.ID); err != nil {
			return nil, err
		}
	}
	return g.Add(n), nil
}

// Count количество объектов в сцене (без корня)
func (g *Graph) Count() int {
	count := 0
	g.Walk(func(*Node, int) { count++ })
	return count
}

// CountNamed количество объектов с данным именем
func (g *Graph) CountNamed(name string) int {
	count := 0
	g.Walk(func(n *Node, _ int) {
		if n.name == name {
			count++
		}
	})
	return count
}
