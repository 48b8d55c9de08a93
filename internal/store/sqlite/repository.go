package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"giftregistry/internal/core"
	"giftregistry/internal/store"
)

const giftColumns = `id, name, recipient, category, event, notes, link, date, priority, type, price, goal, purchased, added, added_by`

// patchColumns maps patch field names to columns. Contributions live in
// their own table and are handled separately.
var patchColumns = map[string]string{
	"name":      "name",
	"recipient": "recipient",
	"category":  "category",
	"event":     "event",
	"date":      "date",
	"link":      "link",
	"notes":     "notes",
	"priority":  "priority",
	"type":      "type",
	"price":     "price",
	"goal":      "goal",
	"purchased": "purchased",
}

type SQLiteRepository struct {
	db     *sql.DB
	events store.Broadcaster
}

var _ store.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ListGifts implements store.Lister
func (r *SQLiteRepository) ListGifts(ctx context.Context) ([]core.GiftRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+giftColumns+` FROM gifts ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list gifts: %w", err)
	}
	defer rows.Close()

	var gifts []core.GiftRecord
	index := map[string]int{}
	for rows.Next() {
		rec, err := scanGift(rows)
		if err != nil {
			return nil, err
		}
		index[rec.ID] = len(gifts)
		gifts = append(gifts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gifts: %w", err)
	}

	crows, err := r.db.QueryContext(ctx, `SELECT gift_id, amount FROM gift_contributions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	defer crows.Close()
	for crows.Next() {
		var giftID string
		var amount float64
		if err := crows.Scan(&giftID, &amount); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		if i, ok := index[giftID]; ok {
			gifts[i].Contributions = append(gifts[i].Contributions, core.Contribution{Amount: amount})
		}
	}
	if err := crows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contributions: %w", err)
	}

	return core.NormalizeRecords(gifts), nil
}

// GetGift implements store.Lister
func (r *SQLiteRepository) GetGift(ctx context.Context, id string) (core.GiftRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+giftColumns+` FROM gifts WHERE id = ?`, id)
	rec, err := scanGift(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.GiftRecord{}, store.ErrNotFound
	}
	if err != nil {
		return core.GiftRecord{}, err
	}
	rec.Contributions, err = r.contributions(ctx, r.db, id)
	if err != nil {
		return core.GiftRecord{}, err
	}
	return core.NormalizeRecord(rec), nil
}

// CreateGift implements store.Writer
func (r *SQLiteRepository) CreateGift(ctx context.Context, rec core.GiftRecord) (string, error) {
	rec = core.NormalizeRecord(rec)
	rec.ID = uuid.NewString()

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO gifts (`+giftColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Name, rec.Recipient, rec.Category, rec.Event, rec.Notes, rec.Link, rec.Date,
			string(rec.Priority), string(rec.Type), nullAmount(rec.Price), nullAmount(rec.Goal),
			rec.Purchased, rec.Added, rec.AddedBy)
		if err != nil {
			return fmt.Errorf("insert gift: %w", err)
		}
		return replaceContributions(ctx, tx, rec.ID, rec.Contributions)
	})
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Gift saved to SQLite", "id", rec.ID, "name", rec.Name, "added_by", rec.AddedBy)
	r.events.Notify()
	return rec.ID, nil
}

// UpdateGift implements store.Writer
func (r *SQLiteRepository) UpdateGift(ctx context.Context, id string, patch core.GiftPatch) error {
	var sets []string
	var args []any
	for _, f := range patch.Fields() {
		col, ok := patchColumns[f.Name]
		if !ok {
			continue
		}
		sets = append(sets, col+" = ?")
		args = append(args, f.Value)
	}

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if len(sets) > 0 {
			res, err := tx.ExecContext(ctx, `UPDATE gifts SET `+strings.Join(sets, ", ")+` WHERE id = ?`, append(args, id)...)
			if err != nil {
				return fmt.Errorf("update gift: %w", err)
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return store.ErrNotFound
			}
		} else if err := exists(ctx, tx, id); err != nil {
			return err
		}
		if patch.SetContributions {
			return replaceContributions(ctx, tx, id, patch.Contributions)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.DebugContext(ctx, "Gift updated in SQLite", "id", id, "fields", len(sets))
	r.events.Notify()
	return nil
}

// AppendContribution implements store.Writer
func (r *SQLiteRepository) AppendContribution(ctx context.Context, id string, c core.Contribution) (core.GiftRecord, error) {
	var rec core.GiftRecord
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if err := exists(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO gift_contributions (gift_id, amount) VALUES (?, ?)`, id, c.Amount); err != nil {
			return fmt.Errorf("insert contribution: %w", err)
		}
		var err error
		rec, err = scanGift(tx.QueryRowContext(ctx, `SELECT `+giftColumns+` FROM gifts WHERE id = ?`, id))
		if err != nil {
			return err
		}
		rec.Contributions, err = r.contributions(ctx, tx, id)
		return err
	})
	if err != nil {
		return core.GiftRecord{}, err
	}

	slog.DebugContext(ctx, "Contribution added in SQLite", "id", id, "amount", c.Amount)
	r.events.Notify()
	return core.NormalizeRecord(rec), nil
}

// DeleteGift implements store.Writer
func (r *SQLiteRepository) DeleteGift(ctx context.Context, id string) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM gift_contributions WHERE gift_id = ?`, id); err != nil {
			return fmt.Errorf("delete contributions: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM gifts WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete gift: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Gift deleted from SQLite", "id", id)
	r.events.Notify()
	return nil
}

// Subscribe implements store.Subscriber. Snapshots follow local writes and
// Refresh calls.
func (r *SQLiteRepository) Subscribe(ctx context.Context, onSnapshot func([]core.GiftRecord), onError func(error)) error {
	return r.events.Watch(ctx, r.ListGifts, onSnapshot, onError)
}

// Refresh pushes a fresh snapshot to subscribers, for changes written by
// another process sharing the database file.
func (r *SQLiteRepository) Refresh() {
	r.events.Notify()
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *SQLiteRepository) contributions(ctx context.Context, q queryer, id string) ([]core.Contribution, error) {
	rows, err := q.QueryContext(ctx, `SELECT amount FROM gift_contributions WHERE gift_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("get contributions: %w", err)
	}
	defer rows.Close()
	out := []core.Contribution{}
	for rows.Next() {
		var c core.Contribution
		if err := rows.Scan(&c.Amount); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func exists(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM gifts WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check gift: %w", err)
	}
	return nil
}

func replaceContributions(ctx context.Context, tx *sql.Tx, id string, cs []core.Contribution) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM gift_contributions WHERE gift_id = ?`, id); err != nil {
		return fmt.Errorf("clear contributions: %w", err)
	}
	for _, c := range cs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO gift_contributions (gift_id, amount) VALUES (?, ?)`, id, c.Amount); err != nil {
			return fmt.Errorf("insert contribution: %w", err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGift(s scanner) (core.GiftRecord, error) {
	var (
		rec             core.GiftRecord
		priority, gtype string
		price, goal     sql.NullFloat64
	)
	err := s.Scan(&rec.ID, &rec.Name, &rec.Recipient, &rec.Category, &rec.Event, &rec.Notes,
		&rec.Link, &rec.Date, &priority, &gtype, &price, &goal, &rec.Purchased, &rec.Added, &rec.AddedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("scan gift: %w", err)
	}
	rec.Priority = core.Priority(priority)
	rec.Type = core.GiftType(gtype)
	if price.Valid {
		rec.Price = &price.Float64
	}
	if goal.Valid {
		rec.Goal = &goal.Float64
	}
	return rec, nil
}

func nullAmount(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
