package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/annel0/commoncore/internal/gamestate"
)

// MemoryRepo реализует SaveRepo в памяти.
// Используется для тестов и консоли разработчика без внешних хранилищ.
// ВНИМАНИЕ: сохранения теряются при перезапуске процесса!
type MemoryRepo struct {
	mu     sync.RWMutex
	data   map[string][]byte // slot -> закодированное сохранение
	infos  map[string]SlotInfo
	closed bool
}

// NewMemoryRepo создаёт новое хранилище сохранений в памяти
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data:  make(map[string][]byte),
		infos: make(map[string]SlotInfo),
	}
}

// Save кодирует состояние, поэтому последующие изменения store не влияют на слот
func (r *MemoryRepo) Save(ctx context.Context, slot string, store *gamestate.Store) (*SlotInfo, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	data, info, err := encodeStore(slot, store)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	r.data[slot] = data
	r.infos[slot] = *info
	return info, nil
}

func (r *MemoryRepo) Load(ctx context.Context, slot string) (*gamestate.Store, bool, error) {
	if err := ValidateSlot(slot); err != nil {
		return nil, false, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, false, err
	}

	r.mu.RLock()
	data, exists := r.data[slot]
	closed := r.closed
	r.mu.RUnlock()

	if closed {
		return nil, false, ErrClosed
	}
	if !exists {
		return nil, false, nil
	}
	f, err := Decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("слот %s: %w", slot, err)
	}
	return f.Store, true, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, slot string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data[slot]; !exists {
		return fmt.Errorf("%w: %s", ErrSlotNotFound, slot)
	}
	delete(r.data, slot)
	delete(r.infos, slot)
	return nil
}

func (r *MemoryRepo) List(ctx context.Context) ([]SlotInfo, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]SlotInfo, 0, len(r.infos))
	for _, info := range r.infos {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out, nil
}

// Corrupt портит тело слота (для тестов проверки контрольной суммы)
func (r *MemoryRepo) Corrupt(slot string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if data, ok := r.data[slot]; ok && len(data) > headerSize {
		data[len(data)-1] ^= 0xFF
	}
}

func (r *MemoryRepo) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
