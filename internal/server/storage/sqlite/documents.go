package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/bookclub/internal/document"
	"github.com/iudanet/bookclub/internal/models"
	"github.com/iudanet/bookclub/internal/server/storage"
	"github.com/iudanet/bookclub/pkg/api"
)

// Snapshot returns the documents of a collection matching q
func (s *Storage) Snapshot(ctx context.Context, collection string, q api.Query) (api.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return api.Snapshot{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	revision, err := revision(ctx, tx, collection)
	if err != nil {
		return api.Snapshot{}, err
	}

	query := `
		SELECT id, owner_id, data, created_at, updated_at
		FROM documents
		WHERE collection = ?
	`

	rows, err := tx.QueryContext(ctx, query, collection)
	if err != nil {
		return api.Snapshot{}, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var docs []api.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return api.Snapshot{}, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return api.Snapshot{}, fmt.Errorf("error iterating documents: %w", err)
	}

	// Фильтрация и сортировка выполняются теми же правилами, что и в памяти
	return api.Snapshot{
		Collection: collection,
		Documents:  document.Select(docs, q),
		Revision:   revision,
	}, nil
}

// Revision returns the current revision of a collection
func (s *Storage) Revision(ctx context.Context, collection string) (int64, error) {
	return revision(ctx, s.db, collection)
}

// CreateDocument stores a new document
func (s *Storage) CreateDocument(ctx context.Context, collection string, doc api.Document) (int64, error) {
	if doc.ID == "" || doc.OwnerID == "" {
		return 0, fmt.Errorf("%w: id and owner are required", storage.ErrInvalidDocument)
	}
	for k := range doc.Fields {
		if models.IsReservedField(k) {
			return 0, fmt.Errorf("%w: field %q is read-only", storage.ErrInvalidDocument, k)
		}
	}

	data, err := encodeFields(doc.Fields)
	if err != nil {
		return 0, err
	}

	var rev int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO documents (collection, id, owner_id, data, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`
		if _, err := tx.ExecContext(ctx, query,
			collection,
			doc.ID,
			doc.OwnerID,
			data,
			doc.CreatedAt.UnixNano(),
			doc.UpdatedAt.UnixNano(),
		); err != nil {
			return fmt.Errorf("failed to insert document: %w", err)
		}

		rev, err = bumpRevision(ctx, tx, collection)
		return err
	})
	return rev, err
}

// UpdateDocument applies patch to a document on behalf of actorID
func (s *Storage) UpdateDocument(ctx context.Context, collection, id, actorID string, patch api.Patch, rels []document.Relation, now time.Time) (int64, error) {
	var rev int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		doc, err := getDocument(ctx, tx, collection, id)
		if err != nil {
			return err
		}
		if !document.CanPatch(doc, actorID, patch, rels) {
			return storage.ErrForbidden
		}

		fields, err := document.Apply(doc.Fields, patch, rels)
		if err != nil {
			return fmt.Errorf("%w: %v", storage.ErrInvalidDocument, err)
		}
		data, err := encodeFields(fields)
		if err != nil {
			return err
		}

		updatedAt := document.NextUpdatedAt(doc.UpdatedAt, now)
		query := `
			UPDATE documents
			SET data = ?, updated_at = ?
			WHERE collection = ? AND id = ?
		`
		if _, err := tx.ExecContext(ctx, query, data, updatedAt.UnixNano(), collection, id); err != nil {
			return fmt.Errorf("failed to update document: %w", err)
		}

		rev, err = bumpRevision(ctx, tx, collection)
		return err
	})
	return rev, err
}

// DeleteDocument removes a document owned by actorID
func (s *Storage) DeleteDocument(ctx context.Context, collection, id, actorID string) (int64, error) {
	var rev int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		doc, err := getDocument(ctx, tx, collection, id)
		if err != nil {
			return err
		}
		if !document.CanDelete(doc, actorID) {
			return storage.ErrForbidden
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id); err != nil {
			return fmt.Errorf("failed to delete document: %w", err)
		}

		rev, err = bumpRevision(ctx, tx, collection)
		return err
	})
	return rev, err
}

func (s *Storage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func revision(ctx context.Context, q queryer, collection string) (int64, error) {
	var rev int64
	err := q.QueryRowContext(ctx, `SELECT revision FROM collections WHERE name = ?`, collection).Scan(&rev)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get revision: %w", err)
	}
	return rev, nil
}

func bumpRevision(ctx context.Context, tx *sql.Tx, collection string) (int64, error) {
	query := `
		INSERT INTO collections (name, revision) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET revision = revision + 1
		RETURNING revision
	`
	var rev int64
	if err := tx.QueryRowContext(ctx, query, collection).Scan(&rev); err != nil {
		return 0, fmt.Errorf("failed to bump revision: %w", err)
	}
	return rev, nil
}

func getDocument(ctx context.Context, tx *sql.Tx, collection, id string) (api.Document, error) {
	query := `
		SELECT id, owner_id, data, created_at, updated_at
		FROM documents
		WHERE collection = ? AND id = ?
	`
	doc, err := scanDocument(tx.QueryRowContext(ctx, query, collection, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return api.Document{}, storage.ErrDocumentNotFound
		}
		return api.Document{}, err
	}
	return doc, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (api.Document, error) {
	var (
		doc                  api.Document
		data                 string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&doc.ID, &doc.OwnerID, &data, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return api.Document{}, err
		}
		return api.Document{}, fmt.Errorf("failed to scan document: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &doc.Fields); err != nil {
		return api.Document{}, fmt.Errorf("failed to decode document %s: %w", doc.ID, err)
	}
	if doc.Fields == nil {
		doc.Fields = map[string]any{}
	}
	doc.CreatedAt = time.Unix(0, createdAt).UTC()
	doc.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return doc, nil
}

func encodeFields(fields map[string]any) (string, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("%w: %v", storage.ErrInvalidDocument, err)
	}
	return string(data), nil
}
