package worldscene

import (
	"fmt"

	"github.com/annel0/commoncore/internal/scene"
	"github.com/annel0/commoncore/internal/vec"
)

// Placement правило, по которому выбрано место появления игрока
type Placement int

const (
	PlacementUnchanged    Placement = iota // игрок остаётся там, где создан
	PlacementSpawnPoint                    // именованная точка из намерения
	PlacementDefaultSpawn                  // точка по умолчанию
	PlacementExplicit                      // явные координаты из намерения
)

func (p Placement) String() string {
	switch p {
	case PlacementSpawnPoint:
		return "spawn_point"
	case PlacementDefaultSpawn:
		return "default_spawn"
	case PlacementExplicit:
		return "explicit"
	default:
		return "unchanged"
	}
}

// Resolution результат разбора намерения
type Resolution struct {
	Placement Placement
	Position  vec.Vec3
	Rotation  vec.Quat
	Source    string // имя точки появления, если она использована
}

// ResolveIntent определяет, где должен оказаться игрок.
// Возвращаемая ошибка носит уведомительный характер (ErrNoIntent,
// ErrSpawnPointNotFound): Resolution при этом всё равно пригодна к применению.
func ResolveIntent(g SceneGraph, intent *PlayerIntent, defaultSpawn string) (Resolution, error) {
	if intent == nil {
		return resolveDefault(g, defaultSpawn), ErrNoIntent
	}

	if intent.SpawnPoint == nil {
		return Resolution{
			Placement: PlacementExplicit,
			Position:  intent.Position,
			Rotation:  intent.Rotation,
		}, nil
	}

	name := *intent.SpawnPoint
	if name == "" {
		return resolveDefault(g, defaultSpawn), nil
	}

	if sp, ok := g.FindByName(name); ok {
		t := sp.Transform()
		return Resolution{
			Placement: PlacementSpawnPoint,
			Position:  t.Position,
			Rotation:  t.Rotation,
			Source:    sp.Name(),
		}, nil
	}
	return resolveDefault(g, defaultSpawn), fmt.Errorf("%w: %s", ErrSpawnPointNotFound, name)
}

// resolveDefault ищет точку по умолчанию сначала по тегу, затем по имени
func resolveDefault(g SceneGraph, defaultSpawn string) Resolution {
	sp, ok := g.FindByTag(defaultSpawn)
	if !ok {
		sp, ok = g.FindByName(defaultSpawn)
	}
	if !ok {
		return Resolution{Placement: PlacementUnchanged}
	}
	t := sp.Transform()
	return Resolution{
		Placement: PlacementDefaultSpawn,
		Position:  t.Position,
		Rotation:  t.Rotation,
		Source:    sp.Name(),
	}
}

// Apply переносит игрока согласно Resolution; масштаб не меняется
func (r Resolution) Apply(player *scene.Node) {
	if r.Placement == PlacementUnchanged || player == nil {
		return
	}
	t := player.Transform()
	t.Position = r.Position
	t.Rotation = r.Rotation
	player.SetTransform(t)
}
