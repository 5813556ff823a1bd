package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/alexisbeaulieu97/avalon/pkg/api"
	avalonerrors "github.com/alexisbeaulieu97/avalon/pkg/errors"
)

const maxParenthoodDepth = 16

// SQLite is a Store backed by a single SQLite file. Documents are kept as
// JSON bodies with their identity columns extracted for lookups.
type SQLite struct {
	db     *sql.DB
	dbPath string
}

var _ Store = (*SQLite)(nil)

// OpenSQLite creates or opens the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.dbPath
}

func (s *SQLite) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		parent TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_type_parent ON documents(type, parent);
	CREATE INDEX IF NOT EXISTS idx_documents_type_name ON documents(type, name);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Insert stores doc, assigning a UUID when it has no _id.
func (s *SQLite) Insert(ctx context.Context, doc api.Document) (string, error) {
	if doc == nil {
		return "", errors.New("insert nil document")
	}
	if doc.Type() == "" {
		return "", errors.New("insert document without type")
	}
	if doc.ID() == "" {
		doc["_id"] = uuid.New().String()
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode document %s: %w", doc.ID(), err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, type, name, parent, body) VALUES (?, ?, ?, ?, ?)`,
		doc.ID(), doc.Type(), doc.Name(), doc.Parent(), string(body))
	if err != nil {
		return "", fmt.Errorf("insert document %s: %w", doc.ID(), err)
	}
	return doc.ID(), nil
}

// Replace overwrites the document with the same _id.
func (s *SQLite) Replace(ctx context.Context, doc api.Document) error {
	if doc.ID() == "" {
		return errors.New("replace document without _id")
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", doc.ID(), err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET type = ?, name = ?, parent = ?, body = ? WHERE id = ?`,
		doc.Type(), doc.Name(), doc.Parent(), string(body), doc.ID())
	if err != nil {
		return fmt.Errorf("replace document %s: %w", doc.ID(), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("replace document %s: %w", doc.ID(), ErrNotFound)
	}
	return nil
}

// FindOne returns the first document matching filter.
func (s *SQLite) FindOne(ctx context.Context, filter Filter) (api.Document, error) {
	filter.Limit = 1
	docs, err := s.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

// Find returns every document matching filter.
func (s *SQLite) Find(ctx context.Context, filter Filter) ([]api.Document, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(column, value string) {
		if value != "" {
			clauses = append(clauses, column+" = ?")
			args = append(args, value)
		}
	}
	add("id", filter.ID)
	add("type", filter.Type)
	add("name", filter.Name)
	add("parent", filter.Parent)

	query := "SELECT body FROM documents"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	switch filter.Order {
	case OrderNameNumericDesc:
		query += " ORDER BY CAST(name AS INTEGER) DESC, rowid"
	case OrderName:
		query += " ORDER BY name, rowid"
	default:
		query += " ORDER BY rowid"
	}
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []api.Document
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		var doc api.Document
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Parenthood walks parent links from doc up to the root document.
func (s *SQLite) Parenthood(ctx context.Context, doc api.Document) ([]api.Document, error) {
	var parents []api.Document
	current := doc
	for depth := 0; current.Parent() != ""; depth++ {
		if depth >= maxParenthoodDepth {
			return nil, fmt.Errorf("parenthood of %s exceeds %d levels", doc.ID(), maxParenthoodDepth)
		}
		parent, err := s.FindOne(ctx, Filter{ID: current.Parent()})
		if errors.Is(err, ErrNotFound) {
			return nil, &avalonerrors.IntegrityError{
				Representation: doc.ID(),
				Missing:        []string{fmt.Sprintf("%s parent %s", current.Type(), current.Parent())},
			}
		}
		if err != nil {
			return nil, err
		}
		parents = append(parents, parent)
		current = parent
	}
	return parents, nil
}

// Import inserts documents in order, replacing those whose _id already
// exists.
func Import(ctx context.Context, s Store, docs []api.Document) (int, error) {
	count := 0
	for _, doc := range docs {
		if doc.ID() != "" {
			if _, err := s.FindOne(ctx, Filter{ID: doc.ID()}); err == nil {
				if err := s.Replace(ctx, doc); err != nil {
					return count, err
				}
				count++
				continue
			} else if !errors.Is(err, ErrNotFound) {
				return count, err
			}
		}
		if _, err := s.Insert(ctx, doc); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
