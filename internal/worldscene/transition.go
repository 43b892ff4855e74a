package worldscene

import (
	"context"

	"github.com/annel0/commoncore/internal/vec"
)

// TransitionKind причина входа в сцену
type TransitionKind int

const (
	TransitionNone TransitionKind = iota
	TransitionNewGame
	TransitionLoadGame
	TransitionChangeScene
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionNewGame:
		return "new_game"
	case TransitionLoadGame:
		return "load_game"
	case TransitionChangeScene:
		return "change_scene"
	default:
		return "none"
	}
}

// PlayerIntent где должен появиться игрок после перехода, не являющегося загрузкой.
// SpawnPoint == nil - имени нет, используются Position/Rotation;
// указатель на "" - точка по умолчанию.
type PlayerIntent struct {
	SpawnPoint *string  `json:"spawn_point,omitempty"`
	Position   vec.Vec3 `json:"position"`
	Rotation   vec.Quat `json:"rotation"`
}

// SpawnAt намерение появиться в именованной точке ("" - точка по умолчанию)
func SpawnAt(spawnPoint string) *PlayerIntent {
	return &PlayerIntent{SpawnPoint: &spawnPoint}
}

// PlaceAt намерение появиться в явно заданном месте
func PlaceAt(position vec.Vec3, rotation vec.Quat) *PlayerIntent {
	return &PlayerIntent{Position: position, Rotation: rotation}
}

// Intent отложенное действие, выполняемое до и после восстановления сцены
type Intent interface {
	Preload(ctx context.Context, meta *MetaState) error
	Postload(ctx context.Context, meta *MetaState) error
}

// MetaState контекст перехода между сценами. Заполняется драйвером переходов,
// движок его только читает (кроме ExitScene и Start).
type MetaState struct {
	TransitionType TransitionKind
	PlayerIntent   *PlayerIntent
	PreviousScene  string
	NextScene      string
	Intents        []Intent
}
