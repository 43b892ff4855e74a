package scene

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/annel0/commoncore/internal/restorable"
	"github.com/annel0/commoncore/internal/vec"
	"gopkg.in/yaml.v3"
)

// NodeSpec описание объекта в YAML-файле сцены
type NodeSpec struct {
	Name       string                 `yaml:"name"`
	Tag        string                 `yaml:"tag,omitempty"`
	Form       string                 `yaml:"form,omitempty"`
	Restorable restorable.Kind        `yaml:"restorable,omitempty"`
	Active     *bool                  `yaml:"active,omitempty"`
	Transform  vec.Transform          `yaml:"transform,omitempty"`
	Data       map[string]interface{} `yaml:"data,omitempty"`
	Children   []NodeSpec             `yaml:"children,omitempty"`
}

// Spec описание сцены
type Spec struct {
	Scene string     `yaml:"scene"`
	Nodes []NodeSpec `yaml:"nodes"`
}

// Build строит живую сцену по описанию
func (s Spec) Build() (*Graph, error) {
	if strings.TrimSpace(s.Scene) == "" {
		return nil, fmt.Errorf("у сцены нет имени")
	}
	g := NewGraph(s.Scene)
	for _, ns := range s.Nodes {
		if err := buildNode(g.root, ns); err != nil {
			return nil, fmt.Errorf("сцена %s: %w", s.Scene, err)
		}
	}
	return g, nil
}

func buildNode(parent *Node, ns NodeSpec) error {
	if ns.Name == "" {
		return fmt.Errorf("объект без имени под %s", parent.name)
	}
	n := NewNode(ns.Name)
	n.tag = ns.Tag
	n.SetTransform(ns.Transform)
	if ns.Data != nil {
		n.SetData(ns.Data)
	}
	if ns.Active != nil {
		n.active = *ns.Active
	}
	parent.AddChild(n)

	if ns.Restorable != restorable.KindUnknown {
		if err := n.Attach(ns.Restorable, ns.Form); err != nil {
			return err
		}
	}
	for _, child := range ns.Children {
		if err := buildNode(n, child); err != nil {
			return err
		}
	}
	return nil
}

// LoadSpec читает описание сцены из YAML
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("ошибка разбора сцены %s: %w", path, err)
	}
	return &spec, nil
}

// LoadSpecDir читает все описания сцен каталога, ключ - имя сцены
func LoadSpecDir(dir string) (map[string]*Spec, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	specs := make(map[string]*Spec)
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		spec, err := LoadSpec(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if _, dup := specs[spec.Scene]; dup {
			return nil, fmt.Errorf("сцена %s описана дважды", spec.Scene)
		}
		specs[spec.Scene] = spec
	}
	return specs, nil
}
