package forms

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/annel0/commoncore/internal/restorable"
	"github.com/annel0/commoncore/internal/vec"
	"gopkg.in/yaml.v3"
)

// Form шаблон объекта, по которому создаётся отсутствующий в сцене экземпляр
type Form struct {
	ID         string                 `yaml:"id" json:"id"`
	Tag        string                 `yaml:"tag,omitempty" json:"tag,omitempty"`
	Restorable restorable.Kind        `yaml:"restorable,omitempty" json:"restorable,omitempty"` // какой компонент навешивается на экземпляр
	Transform  vec.Transform          `yaml:"transform,omitempty" json:"transform"`
	Data       map[string]interface{} `yaml:"data,omitempty" json:"data,omitempty"`
}

// formFile формат YAML-файла с шаблонами
type formFile struct {
	Forms []Form `yaml:"forms"`
}

// Registry реестр шаблонов по FormID
type Registry struct {
	mu    sync.RWMutex
	forms map[string]*Form
}

// NewRegistry создаёт пустой реестр
func NewRegistry() *Registry {
	return &Registry{forms: make(map[string]*Form)}
}

// Register добавляет шаблон, заменяя существующий с тем же ID
func (r *Registry) Register(f Form) error {
	if strings.TrimSpace(f.ID) == "" {
		return fmt.Errorf("шаблон без id")
	}
	f.Transform = f.Transform.Normalized()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.forms[f.ID] = &f
	return nil
}

// Lookup ищет шаблон. Отсутствие шаблона - штатный исход, а не ошибка.
func (r *Registry) Lookup(formID string) (*Form, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.forms[formID]
	return f, ok
}

// IDs возвращает идентификаторы всех шаблонов
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.forms))
	for id := range r.forms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len количество шаблонов
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.forms)
}

// LoadDir загружает все *.yaml/*.yml файлы каталога
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		n, err := r.LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return loaded, err
		}
		loaded += n
	}
	return loaded, nil
}

// LoadFile загружает шаблоны из одного файла
func (r *Registry) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var file formFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("ошибка разбора шаблонов %s: %w", path, err)
	}

	for _, f := range file.Forms {
		if err := r.Register(f); err != nil {
			return 0, fmt.Errorf("%s: %w", path, err)
		}
	}
	return len(file.Forms), nil
}
