// Package sqlite stores documents as JSON in a single SQLite table. It backs
// local runs and tests.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aksharjobs/matchscore/internal/store"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	doc TEXT NOT NULL,
	PRIMARY KEY (collection, id)
);
`

// Database is a SQLite file holding every collection.
type Database struct {
	db *sql.DB
}

var _ store.Database = (*Database)(nil)

// Open opens (and migrates) the database at path.
func Open(path string) (*Database, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time keeps read-modify-write updates consistent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite database: %w", err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Collection(name string) store.Collection {
	return &Collection{db: d.db, name: name}
}

func (d *Database) Close(context.Context) error {
	return d.db.Close()
}

// Collection is one named collection inside the documents table.
type Collection struct {
	db   *sql.DB
	name string
}

var _ store.Collection = (*Collection)(nil)

func (c *Collection) FindOne(ctx context.Context, filter store.Filter) (store.Document, error) {
	docs, err := c.find(ctx, c.db, filter, 1)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, store.ErrNoDocument
	}
	return docs[0].doc, nil
}

func (c *Collection) Find(ctx context.Context, filter store.Filter) ([]store.Document, error) {
	rows, err := c.find(ctx, c.db, filter, 0)
	if err != nil {
		return nil, err
	}

	docs := make([]store.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, row.doc)
	}
	return docs, nil
}

func (c *Collection) InsertOne(ctx context.Context, doc store.Document) (string, error) {
	id := fmt.Sprint(doc[store.IDField])
	if doc[store.IDField] == nil || id == "" {
		id = uuid.NewString()
	}

	stored := make(store.Document, len(doc)+1)
	for k, v := range doc {
		stored[k] = v
	}
	stored[store.IDField] = id

	payload, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, doc) VALUES (?, ?, ?)`,
		c.name, id, string(payload),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return "", fmt.Errorf("insert into %s: %w", c.name, store.ErrDuplicateKey)
		}
		return "", fmt.Errorf("insert into %s: %w", c.name, err)
	}

	return id, nil
}

func (c *Collection) UpdateOne(ctx context.Context, filter store.Filter, set store.Document) (store.UpdateResult, error) {
	var result store.UpdateResult

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	rows, err := c.find(ctx, tx, filter, 1)
	if err != nil {
		return result, err
	}
	if len(rows) == 0 {
		return result, nil
	}
	result.MatchedCount = 1

	before, err := json.Marshal(rows[0].doc)
	if err != nil {
		return result, fmt.Errorf("encode document: %w", err)
	}

	updated := rows[0].doc
	for k, v := range set {
		updated[k] = v
	}

	after, err := json.Marshal(updated)
	if err != nil {
		return result, fmt.Errorf("encode document: %w", err)
	}

	if string(before) == string(after) {
		return result, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET doc = ? WHERE collection = ? AND id = ?`,
		string(after), c.name, rows[0].id,
	); err != nil {
		if isConstraintViolation(err) {
			return result, fmt.Errorf("update %s: %w", c.name, store.ErrDuplicateKey)
		}
		return result, fmt.Errorf("update %s: %w", c.name, err)
	}
	result.ModifiedCount = 1

	return result, tx.Commit()
}

// EnsureUniqueIndex creates a partial expression index over the JSON fields of
// this collection.
func (c *Collection) EnsureUniqueIndex(ctx context.Context, fields ...string) error {
	if len(fields) == 0 {
		return errors.New("unique index needs at least one field")
	}
	if err := store.ValidateField(c.name); err != nil {
		return err
	}

	exprs := make([]string, 0, len(fields))
	for _, field := range fields {
		if err := store.ValidateField(field); err != nil {
			return err
		}
		exprs = append(exprs, fmt.Sprintf("json_extract(doc, '$.%s')", field))
	}

	stmt := fmt.Sprintf(
		`CREATE UNIQUE INDEX IF NOT EXISTS "uniq_%s_%s" ON documents (%s) WHERE collection = '%s'`,
		c.name, strings.Join(fields, "_"), strings.Join(exprs, ", "), c.name,
	)
	if _, err := c.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create unique index on %s: %w", c.name, err)
	}
	return nil
}

type row struct {
	id  string
	doc store.Document
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (c *Collection) find(ctx context.Context, q querier, filter store.Filter, limit int) ([]row, error) {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var query strings.Builder
	query.WriteString(`SELECT id, doc FROM documents WHERE collection = ?`)
	args := []any{c.name}

	for _, key := range keys {
		if err := store.ValidateField(key); err != nil {
			return nil, err
		}
		value := filter[key]
		if value == nil {
			query.WriteString(` AND json_extract(doc, ?) IS NULL`)
			args = append(args, "$."+key)
			continue
		}
		sqlValue, err := toSQLValue(value)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", key, err)
		}
		query.WriteString(` AND json_extract(doc, ?) = ?`)
		args = append(args, "$."+key, sqlValue)
	}

	query.WriteString(` ORDER BY rowid`)
	if limit > 0 {
		query.WriteString(fmt.Sprintf(` LIMIT %d`, limit))
	}

	rows, err := q.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.name, err)
	}
	defer rows.Close()

	result := make([]row, 0)
	for rows.Next() {
		var (
			id      string
			payload string
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.name, err)
		}

		var doc store.Document
		if err := json.Unmarshal([]byte(payload), &doc); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", id, err)
		}
		result = append(result, row{id: id, doc: doc})
	}

	return result, rows.Err()
}

// toSQLValue converts a filter value to what json_extract yields for it.
func toSQLValue(v any) (any, error) {
	switch typed := v.(type) {
	case string, int, int32, int64, float32, float64:
		return typed, nil
	case bool:
		if typed {
			return 1, nil
		}
		return 0, nil
	case fmt.Stringer:
		return typed.String(), nil
	default:
		return nil, fmt.Errorf("unsupported filter value of type %T", v)
	}
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
