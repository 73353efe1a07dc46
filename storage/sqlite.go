// Package storage persists client session state in a local SQLite file so a
// session survives process restarts.
package storage

import (
	"context"
	"database/sql"
	"time"

	auth "github.com/goliatone/go-marketplace-auth"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// ItemModel is one keyed client storage record.
type ItemModel struct {
	bun.BaseModel `bun:"table:client_storage"`

	Name      string    `bun:"name,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

var _ auth.Storage = &Store{}

// Store implements auth.Storage with bun. Multi key writes and removals
// run in one transaction, so token and identity never disagree on disk.
type Store struct {
	db     *bun.DB
	now    func() time.Time
	logger auth.Logger
}

// Open connects to the SQLite database at dsn and ensures the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; a single connection keeps the tx atomic
	sqldb.SetMaxOpenConns(1)

	store := New(bun.NewDB(sqldb, sqlitedialect.New()))
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an existing bun database. Call Migrate before use.
func New(db *bun.DB) *Store {
	_, logger := auth.ResolveLogger("storage", nil, nil)
	return &Store{db: db, now: time.Now, logger: logger}
}

func (s *Store) WithLogger(logger auth.Logger) *Store {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Migrate creates the storage and activity tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, model := range []any{(*ItemModel)(nil), (*ActivityModel)(nil)} {
		if _, err := s.db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// DB returns the underlying bun database.
func (s *Store) DB() *bun.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetItems returns the stored values for keys. Missing keys are absent from
// the result.
func (s *Store) GetItems(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	var models []ItemModel
	err := s.db.NewSelect().
		Model(&models).
		Where("name IN (?)", bun.In(keys)).
		Scan(ctx)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	for _, m := range models {
		out[m.Name] = m.Value
	}
	return out, nil
}

// SetItems upserts every item in one transaction.
func (s *Store) SetItems(ctx context.Context, items map[string]string) error {
	if len(items) == 0 {
		return nil
	}

	now := s.now().UTC()
	models := make([]ItemModel, 0, len(items))
	for k, v := range items {
		models = append(models, ItemModel{Name: k, Value: v, UpdatedAt: now})
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&models).
			On("CONFLICT (name) DO UPDATE").
			Set("value = EXCLUDED.value").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		return err
	})
	if err != nil {
		s.logger.Error("storage set %d items failed: %v", len(models), err)
	}
	return err
}

// RemoveItems deletes keys in one transaction.
func (s *Store) RemoveItems(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*ItemModel)(nil)).
			Where("name IN (?)", bun.In(keys)).
			Exec(ctx)
		return err
	})
	if err != nil {
		s.logger.Error("storage remove %v failed: %v", keys, err)
	}
	return err
}
