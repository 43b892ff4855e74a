package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockMariaRepo(t *testing.T) (*MariaRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Не удалось создать mock базы данных: %v", err)
	}
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS save_slots")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo, err := newMariaRepo(context.Background(), db)
	if err != nil {
		t.Fatalf("Не удалось создать хранилище: %v", err)
	}
	return repo, mock
}

func TestMariaRepo_SaveUpsertsSlot(t *testing.T) {
	repo, mock := newMockMariaRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO save_slots (slot, save_id, current_scene, saved_at, size, data)")+
		".*"+regexp.QuoteMeta("ON DUPLICATE KEY UPDATE")).
		WithArgs("quick", sqlmock.AnyArg(), "Town", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	info, err := repo.Save(context.Background(), "quick", sampleStore())
	if err != nil {
		t.Fatalf("Ошибка сохранения слота: %v", err)
	}
	if info.Slot != "quick" || info.CurrentScene != "Town" || info.ID == "" {
		t.Errorf("Неверные сведения о слоте: %+v", info)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Не все запросы выполнены: %v", err)
	}
}

func TestMariaRepo_Load(t *testing.T) {
	repo, mock := newMockMariaRepo(t)
	ctx := context.Background()

	data, _, err := encodeStore("quick", sampleStore())
	if err != nil {
		t.Fatalf("Ошибка кодирования: %v", err)
	}
	query := regexp.QuoteMeta("SELECT data FROM save_slots WHERE slot = ?")
	mock.ExpectQuery(query).WithArgs("quick").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(data))
	mock.ExpectQuery(query).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	store, found, err := repo.Load(ctx, "quick")
	if err != nil || !found {
		t.Fatalf("Слот не загружен: found=%v err=%v", found, err)
	}
	if store.CurrentScene != "Town" || store.Player() == nil {
		t.Errorf("Состояние восстановлено неверно: %+v", store)
	}

	_, found, err = repo.Load(ctx, "missing")
	if err != nil || found {
		t.Errorf("Отсутствующий слот: found=%v err=%v", found, err)
	}

	// недопустимое имя отсекается до запроса
	if _, _, err := repo.Load(ctx, "bad slot"); !errors.Is(err, ErrInvalidSlot) {
		t.Errorf("Ожидалась ErrInvalidSlot, получено: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Не все запросы выполнены: %v", err)
	}
}

func TestMariaRepo_DeleteMissing(t *testing.T) {
	repo, mock := newMockMariaRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM save_slots WHERE slot = ?")).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "gone"); !errors.Is(err, ErrSlotNotFound) {
		t.Errorf("Ожидалась ErrSlotNotFound, получено: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Не все запросы выполнены: %v", err)
	}
}

func TestMariaRepo_List(t *testing.T) {
	repo, mock := newMockMariaRepo(t)
	savedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"slot", "save_id", "current_scene", "saved_at", "size"}).
		AddRow("auto", "id-1", "Harbor", savedAt, 120).
		AddRow("quick", "id-2", "Town", savedAt, 96)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT slot, save_id, current_scene, saved_at, size FROM save_slots ORDER BY slot")).
		WillReturnRows(rows)
	mock.ExpectClose()

	slots, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("Ошибка получения списка слотов: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("Ожидалось 2 слота, получено %d", len(slots))
	}
	if slots[0].Slot != "auto" || slots[0].CurrentScene != "Harbor" || slots[0].Size != 120 {
		t.Errorf("Неверный первый слот: %+v", slots[0])
	}
	if !slots[1].SavedAt.Equal(savedAt) {
		t.Errorf("Неверное время сохранения: %v", slots[1].SavedAt)
	}

	if err := repo.Close(); err != nil {
		t.Errorf("Ошибка закрытия: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Не все запросы выполнены: %v", err)
	}
}
