package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/annel0/commoncore/internal/gamestate"
	"github.com/dgraph-io/badger/v3"
)

const (
	badgerSavePrefix = "save:"
	badgerInfoPrefix = "info:"
)

// BadgerRepo хранит сохранения во встроенной BadgerDB.
// Рядом с телом слота лежит его SlotInfo, чтобы List не распаковывал сохранения.
type BadgerRepo struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerRepo открывает базу в dataPath/saves
func NewBadgerRepo(dataPath string) (*BadgerRepo, error) {
	dbPath := filepath.Join(dataPath, "saves")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &BadgerRepo{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

// Close закрывает базу
func (r *BadgerRepo) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.isReady {
		return nil
	}
	r.isReady = false
	return r.db.Close()
}

func (r *BadgerRepo) Save(ctx context.Context, slot string, store *gamestate.Store) (*SlotInfo, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	data, info, err := encodeStore(slot, store)
	if err != nil {
		return nil, err
	}
	infoData, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации сведений о слоте: %w", err)
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if !r.isReady {
		return nil, ErrClosed
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(badgerSavePrefix+slot), data); err != nil {
			return err
		}
		return txn.Set([]byte(badgerInfoPrefix+slot), infoData)
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return info, nil
}

func (r *BadgerRepo) Load(ctx context.Context, slot string) (*gamestate.Store, bool, error) {
	if err := ValidateSlot(slot); err != nil {
		return nil, false, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, false, err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if !r.isReady {
		return nil, false, ErrClosed
	}

	var data []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerSavePrefix + slot))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	f, err := Decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("слот %s: %w", slot, err)
	}
	return f.Store, true, nil
}

func (r *BadgerRepo) Delete(ctx context.Context, slot string) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}
	if err := checkContext(ctx); err != nil {
		return err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if !r.isReady {
		return ErrClosed
	}

	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(badgerSavePrefix + slot)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrSlotNotFound, slot)
			}
			return err
		}
		if err := txn.Delete([]byte(badgerSavePrefix + slot)); err != nil {
			return err
		}
		return txn.Delete([]byte(badgerInfoPrefix + slot))
	})
}

// List обходит ключи info:* (Badger хранит ключи отсортированными)
func (r *BadgerRepo) List(ctx context.Context) ([]SlotInfo, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if !r.isReady {
		return nil, ErrClosed
	}

	var out []SlotInfo
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(badgerInfoPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := checkContext(ctx); err != nil {
				return err
			}
			var info SlotInfo
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &info)
			})
			if err != nil {
				return fmt.Errorf("ошибка десериализации сведений о слоте: %w", err)
			}
			out = append(out, info)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
