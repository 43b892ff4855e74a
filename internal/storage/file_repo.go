package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/annel0/commoncore/internal/gamestate"
	"github.com/annel0/commoncore/internal/logging"
)

const saveExt = ".ccsave"

// FileRepo хранит каждый слот отдельным файлом в каталоге сохранений
type FileRepo struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileRepo создаёт файловое хранилище; каталог создаётся при необходимости
func NewFileRepo(basePath string) (*FileRepo, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию %s: %w", basePath, err)
	}
	return &FileRepo{basePath: basePath}, nil
}

func (r *FileRepo) slotPath(slot string) string {
	return filepath.Join(r.basePath, slot+saveExt)
}

// Save пишет слот через временный файл, чтобы сбой не оставил полузаписанное сохранение
func (r *FileRepo) Save(ctx context.Context, slot string, store *gamestate.Store) (*SlotInfo, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	data, info, err := encodeStore(slot, store)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tmp, err := os.CreateTemp(r.basePath, slot+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("не удалось создать временный файл: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, fmt.Errorf("не удалось записать слот %s: %w", slot, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("не удалось записать слот %s: %w", slot, err)
	}
	if err := os.Rename(tmpName, r.slotPath(slot)); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("не удалось сохранить слот %s: %w", slot, err)
	}
	return info, nil
}

func (r *FileRepo) Load(ctx context.Context, slot string) (*gamestate.Store, bool, error) {
	if err := ValidateSlot(slot); err != nil {
		return nil, false, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, false, err
	}

	r.mu.RLock()
	data, err := os.ReadFile(r.slotPath(slot))
	r.mu.RUnlock()

	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("не удалось прочитать слот %s: %w", slot, err)
	}
	f, err := Decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("слот %s: %w", slot, err)
	}
	return f.Store, true, nil
}

func (r *FileRepo) Delete(ctx context.Context, slot string) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}
	if err := checkContext(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	err := os.Remove(r.slotPath(slot))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrSlotNotFound, slot)
	}
	return err
}

// List читает каждый файл целиком: сведения о слоте хранятся только внутри сохранения.
// Нечитаемые и повреждённые слоты пропускаются с предупреждением в лог.
func (r *FileRepo) List(ctx context.Context) ([]SlotInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []SlotInfo
	err := filepath.WalkDir(r.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != r.basePath {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), saveExt) {
			return nil
		}
		if err := checkContext(ctx); err != nil {
			return err
		}

		slot := strings.TrimSuffix(d.Name(), saveExt)
		data, err := os.ReadFile(path)
		if err != nil {
			logging.GetStorageLogger().Warn("⚠️ Слот %s не прочитан, пропускаем: %v", slot, err)
			return nil
		}
		f, err := Decode(data)
		if err != nil {
			// повреждённый слот не должен скрывать остальные
			logging.GetStorageLogger().Warn("⚠️ Слот %s повреждён, пропускаем: %v", slot, err)
			return nil
		}
		info := infoFromFile(f, len(data))
		info.Slot = slot
		out = append(out, *info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out, nil
}

func (r *FileRepo) Close() error { return nil }
