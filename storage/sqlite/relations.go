package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/poiesic/veritas/core"
	"github.com/poiesic/veritas/storage"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// MemoryPath opens a private in-memory graph.
const MemoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id       INTEGER PRIMARY KEY,
	filename TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS chunks (
	id          INTEGER PRIMARY KEY,
	document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, chunk_index);
CREATE TABLE IF NOT EXISTS relations (
	src  INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	dst  INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	kind TEXT NOT NULL,
	PRIMARY KEY (src, dst, kind)
);
CREATE INDEX IF NOT EXISTS idx_relations_dst ON relations(dst, kind);
`

// RelationStore is a SQLite backed document relationship graph.
type RelationStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

var _ storage.RelationStore = (*RelationStore)(nil)

// Open opens (creating if necessary) the graph database at path. Pass
// MemoryPath for a throwaway in-memory graph.
func Open(path string) (*RelationStore, error) {
	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("creating graph directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening graph database: %w", err)
	}
	// Every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating graph schema: %w", err)
	}

	return &RelationStore{
		db:     db,
		path:   path,
		logger: slog.Default().With("component", "relation-store"),
	}, nil
}

// Close closes the database connection.
func (s *RelationStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *RelationStore) Path() string {
	return s.path
}

// AddDocument registers a document node and its chunks.
func (s *RelationStore) AddDocument(ctx context.Context, doc *core.Document, chunks []*core.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (id, filename) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET filename = excluded.filename`,
		sqlID(doc.Id), doc.Filename); err != nil {
		return fmt.Errorf("inserting document node: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO chunks (id, document_id, chunk_index) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, sqlID(c.Id), sqlID(doc.Id), c.ChunkIndex); err != nil {
			return fmt.Errorf("inserting chunk node: %w", err)
		}
	}
	return tx.Commit()
}

// AddRelations stores document edges, ignoring duplicates and self loops.
func (s *RelationStore) AddRelations(ctx context.Context, relations ...core.Relation) error {
	if len(relations) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO relations (src, dst, kind) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range relations {
		if r.From == r.To {
			continue
		}
		if _, err := stmt.ExecContext(ctx, sqlID(r.From), sqlID(r.To), r.Kind); err != nil {
			return fmt.Errorf("inserting %s relation: %w", r.Kind, err)
		}
	}
	return tx.Commit()
}

// RelatedChunks follows one hop of the relation graph.
func (s *RelationStore) RelatedChunks(ctx context.Context, chunkIDs []core.ID, kinds []string, limit int, sel core.Selection) ([]core.ID, error) {
	if len(chunkIDs) == 0 || limit <= 0 {
		return nil, nil
	}
	if len(kinds) == 0 {
		kinds = []string{core.RelationCites, core.RelationAuthoredBy, core.RelationSimilarTo}
	}

	seedPH, seedArgs := placeholders(chunkIDs)
	kindPH, kindArgs := placeholders(kinds)

	var q strings.Builder
	var args []any
	fmt.Fprintf(&q, `
WITH seeds AS (
	SELECT DISTINCT document_id AS doc FROM chunks WHERE id IN (%s)
),
related AS (
	SELECT r.dst AS doc FROM relations r JOIN seeds s ON r.src = s.doc WHERE r.kind IN (%s)
	UNION
	SELECT r.src AS doc FROM relations r JOIN seeds s ON r.dst = s.doc WHERE r.kind IN (%s)
)
SELECT c.id FROM chunks c JOIN related rd ON c.document_id = rd.doc
WHERE c.id NOT IN (%s)`, seedPH, kindPH, kindPH, seedPH)
	args = append(args, seedArgs...)
	args = append(args, kindArgs...)
	args = append(args, kindArgs...)
	args = append(args, seedArgs...)

	if sel.Active() {
		selPH, selArgs := placeholders(sel.IDs())
		fmt.Fprintf(&q, " AND c.document_id IN (%s)", selPH)
		args = append(args, selArgs...)
	}
	q.WriteString(" ORDER BY c.document_id, c.chunk_index LIMIT ?")
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying related chunks: %w", err)
	}
	defer rows.Close()

	var ids []core.ID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, core.ID(uint64(id)))
	}
	return ids, rows.Err()
}

// Relations returns every edge touching a document.
func (s *RelationStore) Relations(ctx context.Context, documentID core.ID) ([]core.Relation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT src, dst, kind FROM relations WHERE src = ? OR dst = ? ORDER BY kind, src, dst`,
		sqlID(documentID), sqlID(documentID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Relation
	for rows.Next() {
		var src, dst int64
		var kind string
		if err := rows.Scan(&src, &dst, &kind); err != nil {
			return nil, err
		}
		out = append(out, core.Relation{From: core.ID(uint64(src)), To: core.ID(uint64(dst)), Kind: kind})
	}
	return out, rows.Err()
}

// DeleteDocument removes a document with its chunks and edges.
func (s *RelationStore) DeleteDocument(ctx context.Context, documentID core.ID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, sqlID(documentID))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.logger.Debug("document not in graph", "document_id", documentID)
	}
	return nil
}

// sqlID maps an unsigned ID onto SQLite's signed 64-bit integers.
func sqlID(id core.ID) int64 {
	return int64(uint64(id))
}

func placeholders[T core.ID | string](values []T) (string, []any) {
	args := make([]any, len(values))
	for i, v := range values {
		switch x := any(v).(type) {
		case core.ID:
			args[i] = sqlID(x)
		default:
			args[i] = x
		}
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(values)), ","), args
}
