package eventbus

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrClosed шина закрыта
var ErrClosed = errors.New("шина событий закрыта")

// Типы событий жизненного цикла сцены
const (
	EventSceneSaved    = "scene.saved"
	EventSceneRestored = "scene.restored"
	EventSceneExited   = "scene.exited"
	EventSlotSaved     = "slot.saved"
	EventSlotLoaded    = "slot.loaded"
)

// SceneEvent нагрузка событий сохранения и восстановления сцены
type SceneEvent struct {
	Scene      string            `json:"scene"`
	Transition string            `json:"transition,omitempty"`
	Saved      int               `json:"saved,omitempty"`
	Restored   int               `json:"restored,omitempty"`
	Spawned    int               `json:"spawned,omitempty"`
	Skipped    int               `json:"skipped,omitempty"`
	Warnings   int               `json:"warnings,omitempty"`
	DurationMs float64           `json:"duration_ms"`
	Reasons    map[string]int    `json:"reasons,omitempty"` // причина пропуска -> количество
	Extra      map[string]string `json:"extra,omitempty"`
}

// NewSceneEnvelope упаковывает событие сцены в конверт
func NewSceneEnvelope(source, eventType string, ev SceneEvent) (*Envelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации события %s: %w", eventType, err)
	}
	env := NewEnvelope(source, eventType, payload)
	env.Metadata = map[string]string{"scene": ev.Scene}
	if ev.Skipped > 0 {
		env.Priority = 5
	}
	return env, nil
}

// DecodeSceneEvent разбирает нагрузку события сцены
func DecodeSceneEvent(env *Envelope) (SceneEvent, error) {
	var ev SceneEvent
	if env == nil {
		return ev, fmt.Errorf("пустой конверт")
	}
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		return ev, fmt.Errorf("ошибка разбора события %s: %w", env.EventType, err)
	}
	return ev, nil
}
