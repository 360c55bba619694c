package storage

import (
	"context"
	"time"

	"github.com/iudanet/bookclub/internal/document"
	"github.com/iudanet/bookclub/pkg/api"
)

// DocumentStorage defines interface for collection documents persistence.
// Every successful write bumps the revision of its collection in the same
// transaction and returns the new revision.
type DocumentStorage interface {
	// Snapshot returns the documents of collection matching q, ordered by q,
	// together with the current revision
	Snapshot(ctx context.Context, collection string, q api.Query) (api.Snapshot, error)

	// Revision returns the current revision of collection (0 if it was never written)
	Revision(ctx context.Context, collection string) (int64, error)

	// CreateDocument stores a new document. ID and OwnerID must be set
	CreateDocument(ctx context.Context, collection string, doc api.Document) (int64, error)

	// UpdateDocument applies patch on behalf of actorID. rels are the
	// relations of the collection that other readers may join or leave
	// Returns ErrDocumentNotFound, ErrForbidden or ErrInvalidDocument
	UpdateDocument(ctx context.Context, collection, id, actorID string, patch api.Patch, rels []document.Relation, now time.Time) (int64, error)

	// DeleteDocument removes a document owned by actorID
	// Returns ErrDocumentNotFound or ErrForbidden
	DeleteDocument(ctx context.Context, collection, id, actorID string) (int64, error)
}
