package scene

import (
	"fmt"

	"github.com/annel0/commoncore/internal/restorable"
	"github.com/annel0/commoncore/internal/vec"
)

// Node объект сцены в иерархии трансформов
type Node struct {
	name      string
	tag       string
	active    bool
	transform vec.Transform
	data      map[string]interface{}

	graph     *Graph
	parent    *Node
	children  []*Node
	component restorable.Component
}

// NewNode создаёт активный объект с единичным трансформом
func NewNode(name string) *Node {
	return &Node{
		name:      name,
		active:    true,
		transform: vec.NewTransform(vec.Zero),
		data:      make(map[string]interface{}),
	}
}

func (n *Node) Name() string             { return n.name }
func (n *Node) SetName(name string)      { n.name = name }
func (n *Node) Tag() string              { return n.tag }
func (n *Node) SetTag(tag string)        { n.tag = tag }
func (n *Node) Active() bool             { return n.active }
func (n *Node) SetActive(active bool)    { n.active = active }
func (n *Node) Transform() vec.Transform { return n.transform }
func (n *Node) Parent() *Node            { return n.parent }

// SetTransform задаёт трансформ; незаданные поворот и масштаб заполняются по умолчанию
func (n *Node) SetTransform(t vec.Transform) {
	n.transform = t.Normalized()
}

// Scene имя сцены, которой принадлежит объект
func (n *Node) Scene() string {
	if n.graph == nil {
		return ""
	}
	return n.graph.name
}

// Data возвращает копию произвольных данных объекта
func (n *Node) Data() map[string]interface{} {
	return copyData(n.data)
}

// SetData заменяет произвольные данные объекта
func (n *Node) SetData(data map[string]interface{}) {
	n.data = copyData(data)
	if n.data == nil {
		n.data = make(map[string]interface{})
	}
}

// Set записывает одно значение в данные объекта
func (n *Node) Set(key string, value interface{}) {
	n.data[key] = value
}

// Children возвращает дочерние объекты
func (n *Node) Children() []*Node {
	return n.children
}

// AddChild делает child дочерним объектом n
func (n *Node) AddChild(child *Node) *Node {
	if child.parent != nil {
		child.parent.removeChild(child)
	}
	child.parent = n
	child.setGraph(n.graph)
	n.children = append(n.children, child)
	return child
}

// Detach убирает объект из иерархии
func (n *Node) Detach() {
	if n.parent != nil {
		n.parent.removeChild(n)
		n.parent = nil
	}
	n.setGraph(nil)
}

func (n *Node) removeChild(child *Node) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}

func (n *Node) setGraph(g *Graph) {
	n.graph = g
	for _, c := range n.children {
		c.setGraph(g)
	}
}

// Restorable возвращает восстанавливаемый компонент объекта
func (n *Node) Restorable() (restorable.Component, bool) {
	return n.component, n.component != nil
}

// Attach навешивает на объект компонент нужного варианта
func (n *Node) Attach(kind restorable.Kind, formID string) error {
	c, err := restorable.New(kind, n, formID)
	if err != nil {
		return fmt.Errorf("объект %s: %w", n.name, err)
	}
	n.component = c
	return nil
}

// SetComponent навешивает готовый компонент (например, собственный вариант хоста)
func (n *Node) SetComponent(c restorable.Component) {
	n.component = c
}

func copyData(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}
	c := make(map[string]interface{}, len(data))
	for k, v := range data {
		c[k] = v
	}
	return c
}
