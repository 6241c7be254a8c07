package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_attributes (
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	value BLOB NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (user_id, name)
);

CREATE TABLE IF NOT EXISTS transients (
	name TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transients_expires_at
ON transients(expires_at);

CREATE TABLE IF NOT EXISTS options (
	name TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	permalink TEXT NOT NULL DEFAULT '',
	price_cents INTEGER NOT NULL DEFAULT 0,
	visible INTEGER NOT NULL DEFAULT 1
);
`

// SQLiteStore is a SQLite-backed implementation of AttributeStore, Cache and
// OptionStore. It also holds the product catalog table.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ AttributeStore = (*SQLiteStore)(nil)
	_ Cache          = (*SQLiteStore)(nil)
	_ OptionStore    = (*SQLiteStore)(nil)
)

func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Init is idempotent and safe to run on every start.
func (s *SQLiteStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("enable wal: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) GetAttribute(ctx context.Context, userID string, name string) ([]byte, error) {
	var value []byte
	row := s.db.QueryRowContext(ctx, `
		SELECT value FROM user_attributes WHERE user_id = ? AND name = ?
	`, userID, name)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get attribute %s: %w", name, err)
	}
	return value, nil
}

func (s *SQLiteStore) SetAttribute(ctx context.Context, userID string, name string, value []byte) error {
	if userID == "" || name == "" {
		return errors.New("user id and attribute name are required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_attributes (user_id, name, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, name) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, userID, name, value, s.now().Unix())
	if err != nil {
		return fmt.Errorf("set attribute %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteAttribute(ctx context.Context, userID string, name string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM user_attributes WHERE user_id = ? AND name = ?
	`, userID, name); err != nil {
		return fmt.Errorf("delete attribute %s: %w", name, err)
	}
	return nil
}

// Get reads a transient. Expired rows are treated as missing; they are
// removed later by PurgeExpired or overwritten by the next Set.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	var expiresAt int64
	row := s.db.QueryRowContext(ctx, `
		SELECT value, expires_at FROM transients WHERE name = ?
	`, key)
	if err := row.Scan(&value, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get transient: %w", err)
	}
	if s.now().UnixMilli() > expiresAt {
		return nil, ErrNotFound
	}
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("transient key is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("transient ttl must be positive, got %s", ttl)
	}
	expiresAt := s.now().Add(ttl).UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transients (name, value, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at
	`, key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("set transient: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM transients WHERE name = ?", key); err != nil {
		return fmt.Errorf("delete transient: %w", err)
	}
	return nil
}

// PurgeExpired deletes expired transients and returns how many were removed.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM transients WHERE expires_at < ?", s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge transients: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge transients rows: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) GetOption(ctx context.Context, name string) (string, error) {
	var value string
	row := s.db.QueryRowContext(ctx, "SELECT value FROM options WHERE name = ?", name)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get option %s: %w", name, err)
	}
	return value, nil
}

func (s *SQLiteStore) AddOption(ctx context.Context, name string, value string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO options (name, value) VALUES (?, ?)
	`, name, value)
	if err != nil {
		return false, fmt.Errorf("add option %s: %w", name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add option %s rows: %w", name, err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) UpdateOption(ctx context.Context, name string, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO options (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
	`, name, value)
	if err != nil {
		return fmt.Errorf("update option %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteOption(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM options WHERE name = ?", name); err != nil {
		return fmt.Errorf("delete option %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) UpsertProduct(ctx context.Context, p Product) error {
	if p.ID <= 0 || p.Name == "" {
		return fmt.Errorf("invalid product: id=%d name=%q", p.ID, p.Name)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, permalink, price_cents, visible)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			permalink = excluded.permalink,
			price_cents = excluded.price_cents,
			visible = excluded.visible
	`, p.ID, p.Name, p.Permalink, p.PriceCents, p.Visible)
	if err != nil {
		return fmt.Errorf("upsert product %d: %w", p.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, permalink, price_cents, visible FROM products WHERE id = ?
	`, id)
	if err := row.Scan(&p.ID, &p.Name, &p.Permalink, &p.PriceCents, &p.Visible); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

// VisibleProducts returns the visible products among ids in no particular order.
func (s *SQLiteStore) VisibleProducts(ctx context.Context, ids []int64) ([]Product, error) {
	if len(ids) == 0 {
		return []Product{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, permalink, price_cents, visible
		FROM products
		WHERE visible = 1 AND id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0, len(ids))
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Permalink, &p.PriceCents, &p.Visible); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// ImportProducts upserts a JSON array of products in one transaction and
// returns how many were written.
func (s *SQLiteStore) ImportProducts(ctx context.Context, r io.Reader) (int, error) {
	var products []Product
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return 0, fmt.Errorf("decode products: %w", err)
	}
	transaction, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := transaction.PrepareContext(ctx, `
		INSERT INTO products (id, name, permalink, price_cents, visible)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			permalink = excluded.permalink,
			price_cents = excluded.price_cents,
			visible = excluded.visible
	`)
	if err != nil {
		_ = transaction.Rollback()
		return 0, fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	for _, p := range products {
		if p.ID <= 0 || p.Name == "" {
			_ = transaction.Rollback()
			return 0, fmt.Errorf("invalid product: id=%d name=%q", p.ID, p.Name)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.Name, p.Permalink, p.PriceCents, p.Visible); err != nil {
			_ = transaction.Rollback()
			return 0, fmt.Errorf("import product %d: %w", p.ID, err)
		}
	}
	if err := transaction.Commit(); err != nil {
		return 0, fmt.Errorf("commit products: %w", err)
	}
	return len(products), nil
}
