package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/annel0/commoncore/internal/gamestate"
)

var (
	// ErrSlotNotFound слот сохранения отсутствует
	ErrSlotNotFound = errors.New("слот сохранения не найден")
	// ErrInvalidSlot недопустимое имя слота
	ErrInvalidSlot = errors.New("недопустимое имя слота")
	// ErrClosed хранилище уже закрыто
	ErrClosed = errors.New("хранилище закрыто")
)

// SlotInfo краткие сведения о слоте без распаковки состояния
type SlotInfo struct {
	Slot         string    `json:"slot" bson:"slot"`
	ID           string    `json:"id" bson:"save_id"`
	CurrentScene string    `json:"current_scene" bson:"current_scene"`
	SavedAt      time.Time `json:"saved_at" bson:"saved_at"`
	Size         int       `json:"size" bson:"size"`
}

// SaveRepo определяет интерфейс для хранения сохранений игры.
// Сохранение привязано к имени слота ("quick", "auto", "slot1" ...).
type SaveRepo interface {
	// Save записывает состояние в слот, заменяя предыдущее
	Save(ctx context.Context, slot string, store *gamestate.Store) (*SlotInfo, error)

	// Load читает состояние слота. found == false, если слота нет.
	Load(ctx context.Context, slot string) (store *gamestate.Store, found bool, err error)

	// Delete удаляет слот; ErrSlotNotFound, если его нет
	Delete(ctx context.Context, slot string) error

	// List возвращает слоты, отсортированные по имени
	List(ctx context.Context) ([]SlotInfo, error)

	Close() error
}

var slotPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// ValidateSlot проверяет имя слота: оно используется в путях и ключах
func ValidateSlot(slot string) error {
	if !slotPattern.MatchString(slot) || slot == "." || slot == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	return nil
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func infoFromFile(f *SaveFile, size int) *SlotInfo {
	return &SlotInfo{
		Slot:         f.Slot,
		ID:           f.ID,
		CurrentScene: f.CurrentScene,
		SavedAt:      f.SavedAt,
		Size:         size,
	}
}
