package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/annel0/commoncore/internal/gamestate"
	"github.com/go-sql-driver/mysql"
)

// MariaRepo реализует SaveRepo для базы данных MariaDB/MySQL.
// Использует таблицу save_slots.
type MariaRepo struct {
	db *sql.DB
}

// NewMariaRepo создаёт репозиторий сохранений для MariaDB.
// Автоматически создаёт таблицу, если она не существует.
//
// Параметры:
//
//	dsn - строка подключения к базе данных (user:pass@tcp(host:port)/dbname)
func NewMariaRepo(ctx context.Context, dsn string) (*MariaRepo, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("некорректный DSN MariaDB: %w", err)
	}
	cfg.ParseTime = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	repo, err := newMariaRepo(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// newMariaRepo оборачивает открытое соединение и создаёт таблицу слотов
func newMariaRepo(ctx context.Context, db *sql.DB) (*MariaRepo, error) {
	repo := &MariaRepo{db: db}
	if err := repo.createTable(ctx); err != nil {
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}
	return repo, nil
}

func (r *MariaRepo) createTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS save_slots (
			slot          VARCHAR(64)  PRIMARY KEY,
			save_id       CHAR(36)     NOT NULL,
			current_scene VARCHAR(255) NOT NULL DEFAULT '',
			saved_at      DATETIME(6)  NOT NULL,
			size          INT          NOT NULL,
			data          LONGBLOB     NOT NULL,
			INDEX idx_saved_at (saved_at)
		) ENGINE=InnoDB
	`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ошибка создания таблицы save_slots: %w", err)
	}
	return nil
}

// Save использует INSERT ... ON DUPLICATE KEY UPDATE для перезаписи слота
func (r *MariaRepo) Save(ctx context.Context, slot string, store *gamestate.Store) (*SlotInfo, error) {
	data, info, err := encodeStore(slot, store)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO save_slots (slot, save_id, current_scene, saved_at, size, data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			save_id = VALUES(save_id),
			current_scene = VALUES(current_scene),
			saved_at = VALUES(saved_at),
			size = VALUES(size),
			data = VALUES(data)
	`
	_, err = r.db.ExecContext(ctx, query, slot, info.ID, info.CurrentScene, info.SavedAt, info.Size, data)
	if err != nil {
		return nil, fmt.Errorf("ошибка сохранения слота %s: %w", slot, err)
	}
	return info, nil
}

func (r *MariaRepo) Load(ctx context.Context, slot string) (*gamestate.Store, bool, error) {
	if err := ValidateSlot(slot); err != nil {
		return nil, false, err
	}

	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT data FROM save_slots WHERE slot = ?`, slot).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка загрузки слота %s: %w", slot, err)
	}

	f, err := Decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("слот %s: %w", slot, err)
	}
	return f.Store, true, nil
}

func (r *MariaRepo) Delete(ctx context.Context, slot string) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM save_slots WHERE slot = ?`, slot)
	if err != nil {
		return fmt.Errorf("ошибка удаления слота %s: %w", slot, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества затронутых строк: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrSlotNotFound, slot)
	}
	return nil
}

func (r *MariaRepo) List(ctx context.Context) ([]SlotInfo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT slot, save_id, current_scene, saved_at, size FROM save_slots ORDER BY slot`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения списка слотов: %w", err)
	}
	defer rows.Close()

	var out []SlotInfo
	for rows.Next() {
		var info SlotInfo
		if err := rows.Scan(&info.Slot, &info.ID, &info.CurrentScene, &info.SavedAt, &info.Size); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Close закрывает соединение с базой данных
func (r *MariaRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
