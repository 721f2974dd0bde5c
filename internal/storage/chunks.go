package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hyperjump/kotae/internal/models"
)

const chunkSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	seq INTEGER PRIMARY KEY,
	id TEXT NOT NULL UNIQUE,
	document_id TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	char_offset INTEGER NOT NULL,
	source_title TEXT NOT NULL,
	text TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, chunk_index);
`

// SQLiteChunkStore holds the chunk rows of an offline index.
type SQLiteChunkStore struct {
	db *sql.DB
}

// NewSQLiteChunkStore opens or creates the chunk database at dbPath.
func NewSQLiteChunkStore(dbPath string) (*SQLiteChunkStore, error) {
	db, err := openSQLite(dbPath, chunkSchema)
	if err != nil {
		return nil, err
	}
	return &SQLiteChunkStore{db: db}, nil
}

// ReplaceChunks deletes every stored chunk and inserts chunks in order, in one transaction.
func (s *SQLiteChunkStore) ReplaceChunks(ctx context.Context, chunks []models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (seq, id, document_id, chunk_index, char_offset, source_title, text)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, i, c.Key(), c.DocumentID, c.Index, c.Offset, c.SourceTitle, c.Text); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.Key(), err)
		}
	}
	return tx.Commit()
}

// ListChunks returns all chunks in insertion order.
func (s *SQLiteChunkStore) ListChunks(ctx context.Context) ([]models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id, chunk_index, char_offset, source_title, text FROM chunks ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.DocumentID, &c.Index, &c.Offset, &c.SourceTitle, &c.Text); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// CountChunks returns the total number of chunks.
func (s *SQLiteChunkStore) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteChunkStore) Close() error {
	return s.db.Close()
}
