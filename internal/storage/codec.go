package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/annel0/commoncore/internal/gamestate"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"
)

// Формат файла сохранения:
//
//	magic "CCSV" | версия (1 байт) | blake2b-256 сжатого тела (32 байта) | zstd(JSON SaveFile)
const (
	saveMagic     = "CCSV"
	FormatVersion = 1
	headerSize    = len(saveMagic) + 1 + blake2b.Size256
)

var (
	// ErrChecksumMismatch тело сохранения повреждено
	ErrChecksumMismatch = errors.New("контрольная сумма сохранения не совпадает")
	// ErrBadFormat данные не являются сохранением
	ErrBadFormat = errors.New("неизвестный формат сохранения")
)

// SaveFile конверт одного сохранения
type SaveFile struct {
	ID           string           `json:"id"`
	Version      int              `json:"version"`
	Slot         string           `json:"slot"`
	SavedAt      time.Time        `json:"saved_at"`
	CurrentScene string           `json:"current_scene"`
	Store        *gamestate.Store `json:"store"`
}

// NewSaveFile упаковывает состояние в конверт с новым идентификатором
func NewSaveFile(slot string, store *gamestate.Store) *SaveFile {
	return &SaveFile{
		ID:           uuid.NewString(),
		Version:      FormatVersion,
		Slot:         slot,
		SavedAt:      time.Now().UTC(),
		CurrentScene: store.CurrentScene,
		Store:        store,
	}
}

var (
	codecOnce sync.Once
	codecErr  error
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
)

func initCodec() error {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			codecErr = fmt.Errorf("не удалось создать zstd-кодировщик: %w", codecErr)
			return
		}
		decoder, codecErr = zstd.NewReader(nil)
		if codecErr != nil {
			codecErr = fmt.Errorf("не удалось создать zstd-декодер: %w", codecErr)
		}
	})
	return codecErr
}

// Encode сериализует сохранение в бинарный формат
func Encode(f *SaveFile) ([]byte, error) {
	if f == nil || f.Store == nil {
		return nil, fmt.Errorf("пустое сохранение")
	}
	if err := initCodec(); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации сохранения: %w", err)
	}
	body := encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2))
	sum := blake2b.Sum256(body)

	out := make([]byte, 0, headerSize+len(body))
	out = append(out, saveMagic...)
	out = append(out, FormatVersion)
	out = append(out, sum[:]...)
	out = append(out, body...)
	return out, nil
}

// Decode проверяет контрольную сумму и распаковывает сохранение
func Decode(data []byte) (*SaveFile, error) {
	if len(data) < headerSize || !bytes.Equal(data[:len(saveMagic)], []byte(saveMagic)) {
		return nil, ErrBadFormat
	}
	if v := data[len(saveMagic)]; v != FormatVersion {
		return nil, fmt.Errorf("%w: версия %d", ErrBadFormat, v)
	}
	if err := initCodec(); err != nil {
		return nil, err
	}

	want := data[len(saveMagic)+1 : headerSize]
	body := data[headerSize:]
	sum := blake2b.Sum256(body)
	if !bytes.Equal(sum[:], want) {
		return nil, ErrChecksumMismatch
	}

	raw, err := decoder.DecodeAll(body, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки сохранения: %w", err)
	}

	var f SaveFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("ошибка десериализации сохранения: %w", err)
	}
	if f.Store == nil {
		f.Store = gamestate.NewStore()
	}
	f.Store.Normalize()
	return &f, nil
}

// encodeStore упаковывает состояние слота и возвращает сведения о нём
func encodeStore(slot string, store *gamestate.Store) ([]byte, *SlotInfo, error) {
	if err := ValidateSlot(slot); err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, fmt.Errorf("слот %s: пустое состояние", slot)
	}
	f := NewSaveFile(slot, store)
	data, err := Encode(f)
	if err != nil {
		return nil, nil, err
	}
	return data, infoFromFile(f, len(data)), nil
}
