package restorable

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrKindMismatch запись не подходит варианту компонента
	ErrKindMismatch = errors.New("тип записи не совпадает с типом компонента")
	// ErrNilRecord на восстановление передана пустая запись
	ErrNilRecord = errors.New("запись отсутствует")
	// ErrBadPayload полезная нагрузка записи не разбирается
	ErrBadPayload = errors.New("некорректная полезная нагрузка записи")
)

// Record снимок изменяемого состояния одного объекта.
// Payload движком не интерпретируется: его кодирует и разбирает вариант компонента.
type Record struct {
	Kind    Kind            `json:"kind" bson:"kind"`
	FormID  string          `json:"form_id,omitempty" bson:"form_id,omitempty"`   // шаблон для повторного создания (нет у blank и player)
	Scene   string          `json:"scene,omitempty" bson:"scene,omitempty"`       // сцена-владелец, только у motile
	Payload json.RawMessage `json:"payload,omitempty" bson:"payload,omitempty"` // данные варианта
}

// Clone возвращает независимую копию записи
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Payload != nil {
		c.Payload = append(json.RawMessage(nil), r.Payload...)
	}
	return &c
}

// Equal сравнивает записи побайтно, включая полезную нагрузку
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.Kind == other.Kind &&
		r.FormID == other.FormID &&
		r.Scene == other.Scene &&
		bytes.Equal(r.Payload, other.Payload)
}

// expect проверяет, что запись предназначена варианту want
func (r *Record) expect(want Kind) error {
	if r == nil {
		return ErrNilRecord
	}
	if r.Kind != want {
		return fmt.Errorf("%w: ожидался %s, получен %s", ErrKindMismatch, want, r.Kind)
	}
	return nil
}

func encodePayload(v interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации полезной нагрузки: %w", err)
	}
	return data, nil
}

// decodePayload разбирает нагрузку в out. Пустая нагрузка не меняет out.
func (r *Record) decodePayload(out interface{}) (bool, error) {
	if len(r.Payload) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(r.Payload, out); err != nil {
		return false, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return true, nil
}
