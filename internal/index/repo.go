package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/depot/internal/apperr"
	"github.com/starford/depot/internal/models"
)

const fileColumns = `category, name, original_name, size, content_type, checksum, created_at`

// Upsert inserts a record or replaces the metadata of an existing one.
func (db *DB) Upsert(ctx context.Context, f models.StoredFile) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO files (`+fileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(category, name) DO UPDATE SET
			original_name = excluded.original_name,
			size          = excluded.size,
			content_type  = excluded.content_type,
			checksum      = excluded.checksum,
			created_at    = excluded.created_at
	`, f.Category, f.Name, f.OriginalName, f.Size, f.ContentType, f.Checksum, createdAt(f))
	if err != nil {
		return fmt.Errorf("index: upsert %s/%s: %w", f.Category, f.Name, err)
	}
	return nil
}

// InsertIfAbsent inserts a record unless one already exists for the key.
// It reports whether a row was written.
func (db *DB) InsertIfAbsent(ctx context.Context, f models.StoredFile) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO files (`+fileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(category, name) DO NOTHING
	`, f.Category, f.Name, f.OriginalName, f.Size, f.ContentType, f.Checksum, createdAt(f))
	if err != nil {
		return false, fmt.Errorf("index: insert %s/%s: %w", f.Category, f.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("index: insert %s/%s: %w", f.Category, f.Name, err)
	}
	return n > 0, nil
}

// Get returns the record for (category, name) or apperr.ErrNotFound.
func (db *DB) Get(ctx context.Context, category, name string) (*models.StoredFile, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE category = ? AND name = ?`, category, name)
	f, err := scanFile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("index: get %s/%s: %w", category, name, err)
	}
	return f, nil
}

// Has reports whether a record exists for (category, name).
func (db *DB) Has(ctx context.Context, category, name string) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM files WHERE category = ? AND name = ?`, category, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("index: has %s/%s: %w", category, name, err)
	}
	return true, nil
}

// List returns records newest first. An empty category lists every category.
// It also returns the total number of matching records.
func (db *DB) List(ctx context.Context, category string, limit, offset int) ([]models.StoredFile, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where := ""
	var args []any
	if category != "" {
		where = ` WHERE category = ?`
		args = append(args, category)
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM files`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM files`+where+` ORDER BY created_at DESC, name DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list: %w", err)
	}
	defer rows.Close()

	out, err := scanFiles(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list: %w", err)
	}
	return out, total, nil
}

// Search matches query against original and stored names, case-insensitively.
func (db *DB) Search(ctx context.Context, query string, limit int) ([]models.StoredFile, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + escapeLike(query) + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+fileColumns+`
		FROM files
		WHERE original_name LIKE ? ESCAPE '\' OR name LIKE ? ESCAPE '\'
		ORDER BY created_at DESC
		LIMIT ?
	`, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	out, err := scanFiles(rows)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return out, nil
}

// Delete removes the record for (category, name). The file itself is untouched.
func (db *DB) Delete(ctx context.Context, category, name string) error {
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM files WHERE category = ? AND name = ?`, category, name); err != nil {
		return fmt.Errorf("index: delete %s/%s: %w", category, name, err)
	}
	return nil
}

// AllKeys returns every indexed (category, name) pair.
func (db *DB) AllKeys(ctx context.Context) (map[Key]struct{}, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT category, name FROM files`)
	if err != nil {
		return nil, fmt.Errorf("index: all keys: %w", err)
	}
	defer rows.Close()
	out := make(map[Key]struct{})
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.Category, &k.Name); err != nil {
			return nil, err
		}
		out[k] = struct{}{}
	}
	return out, rows.Err()
}

// CategoryCounts returns the number of indexed files per category.
func (db *DB) CategoryCounts(ctx context.Context) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT category, count(*) FROM files GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("index: category counts: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var c string
		var n int
		if err := rows.Scan(&c, &n); err != nil {
			return nil, err
		}
		out[c] = n
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*models.StoredFile, error) {
	var f models.StoredFile
	if err := s.Scan(&f.Category, &f.Name, &f.OriginalName, &f.Size, &f.ContentType, &f.Checksum, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func scanFiles(rows *sql.Rows) ([]models.StoredFile, error) {
	out := []models.StoredFile{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func createdAt(f models.StoredFile) time.Time {
	if f.CreatedAt.IsZero() {
		return time.Now().UTC()
	}
	return f.CreatedAt.UTC()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
