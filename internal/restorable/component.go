package restorable

import (
	"fmt"

	"github.com/annel0/commoncore/internal/vec"
)

// Body живой объект сцены, состояние которого сохраняет компонент.
// Реализуется графом сцены хоста.
type Body interface {
	Name() string
	Scene() string
	Active() bool
	SetActive(active bool)
	Transform() vec.Transform
	SetTransform(t vec.Transform)
	Data() map[string]interface{}
	SetData(data map[string]interface{})
}

// Component способность объекта сохранять и восстанавливать своё состояние.
// Каждый участвующий в сохранении объект несёт ровно один компонент.
type Component interface {
	Kind() Kind
	Body() Body
	Save() (*Record, error)
	Restore(rec *Record) error
}

// BlankPayload данные статичного объекта
type BlankPayload struct {
	Active bool                   `json:"active"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// DynamicPayload данные локального и мигрирующего объекта
type DynamicPayload struct {
	Active    bool                   `json:"active"`
	Transform vec.Transform          `json:"transform"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// PlayerPayload данные игрока
type PlayerPayload struct {
	Transform vec.Transform          `json:"transform"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// New создаёт вариант компонента по тегу
func New(kind Kind, body Body, formID string) (Component, error) {
	if body == nil {
		return nil, fmt.Errorf("компонент %s без объекта", kind)
	}
	switch kind {
	case KindBlank:
		return &BlankComponent{body: body}, nil
	case KindDynamic:
		return &DynamicComponent{body: body, FormID: formID}, nil
	case KindMotile:
		return &MotileComponent{DynamicComponent{body: body, FormID: formID}}, nil
	case KindPlayer:
		return &PlayerComponent{body: body}, nil
	default:
		return nil, fmt.Errorf("неизвестный тип восстанавливаемого объекта: %s", kind)
	}
}

// BlankComponent статичный объект: восстанавливается, но никогда не создаётся заново
type BlankComponent struct {
	body Body
}

func (c *BlankComponent) Kind() Kind { return KindBlank }
func (c *BlankComponent) Body() Body { return c.body }

func (c *BlankComponent) Save() (*Record, error) {
	payload, err := encodePayload(BlankPayload{
		Active: c.body.Active(),
		Data:   c.body.Data(),
	})
	if err != nil {
		return nil, err
	}
	return &Record{Kind: KindBlank, Payload: payload}, nil
}

func (c *BlankComponent) Restore(rec *Record) error {
	if err := rec.expect(KindBlank); err != nil {
		return err
	}
	var p BlankPayload
	ok, err := rec.decodePayload(&p)
	if err != nil || !ok {
		return err
	}
	c.body.SetActive(p.Active)
	c.body.SetData(p.Data)
	return nil
}

// DynamicComponent локальный объект сцены: создаётся из шаблона FormID, если его нет
type DynamicComponent struct {
	body   Body
	FormID string
}

func (c *DynamicComponent) Kind() Kind { return KindDynamic }
func (c *DynamicComponent) Body() Body { return c.body }

func (c *DynamicComponent) Save() (*Record, error) {
	return c.save(KindDynamic, "")
}

func (c *DynamicComponent) Restore(rec *Record) error {
	return c.restore(KindDynamic, rec)
}

func (c *DynamicComponent) save(kind Kind, scene string) (*Record, error) {
	payload, err := encodePayload(DynamicPayload{
		Active:    c.body.Active(),
		Transform: c.body.Transform(),
		Data:      c.body.Data(),
	})
	if err != nil {
		return nil, err
	}
	return &Record{Kind: kind, FormID: c.FormID, Scene: scene, Payload: payload}, nil
}

func (c *DynamicComponent) restore(kind Kind, rec *Record) error {
	if err := rec.expect(kind); err != nil {
		return err
	}
	if rec.FormID != "" {
		c.FormID = rec.FormID
	}
	var p DynamicPayload
	ok, err := rec.decodePayload(&p)
	if err != nil || !ok {
		return err
	}
	c.body.SetActive(p.Active)
	c.body.SetTransform(p.Transform)
	c.body.SetData(p.Data)
	return nil
}

// MotileComponent объект, переходящий между сценами.
// Запись помечается сценой, в которой объект находился при сохранении.
type MotileComponent struct {
	DynamicComponent
}

func (c *MotileComponent) Kind() Kind { return KindMotile }

func (c *MotileComponent) Save() (*Record, error) {
	return c.save(KindMotile, c.body.Scene())
}

func (c *MotileComponent) Restore(rec *Record) error {
	return c.restore(KindMotile, rec)
}

// PlayerComponent игрок
type PlayerComponent struct {
	body Body
}

func (c *PlayerComponent) Kind() Kind { return KindPlayer }
func (c *PlayerComponent) Body() Body { return c.body }

func (c *PlayerComponent) Save() (*Record, error) {
	payload, err := encodePayload(PlayerPayload{
		Transform: c.body.Transform(),
		Data:      c.body.Data(),
	})
	if err != nil {
		return nil, err
	}
	return &Record{Kind: KindPlayer, Payload: payload}, nil
}

func (c *PlayerComponent) Restore(rec *Record) error {
	if err := rec.expect(KindPlayer); err != nil {
		return err
	}
	var p PlayerPayload
	ok, err := rec.decodePayload(&p)
	if err != nil || !ok {
		return err
	}
	c.body.SetTransform(p.Transform)
	c.body.SetData(p.Data)
	return nil
}
