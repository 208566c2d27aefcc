package repository

import (
	"context"

	"github.com/mkessler/libmirror/internal/domain"
)

// Library is the read-only view of the reference-manager database an
// export run consumes. Implementations must serve a private,
// point-in-time snapshot: the owning application may be writing to the
// live database while an export is in flight.
type Library interface {
	// ListCollections returns the flat collection listing, ordered by name.
	ListCollections(ctx context.Context) ([]domain.Collection, error)

	// ListDirectItems returns the regular bibliographic items directly in
	// a collection, excluding note and attachment pseudo-items.
	ListDirectItems(ctx context.Context, id domain.CollectionID) ([]domain.Item, error)

	// GetItemMetadata returns the raw title, date and primary author
	// surname of an item. Absent fields are empty strings.
	GetItemMetadata(ctx context.Context, id domain.ItemID) (domain.ItemMetadata, error)

	// ListAttachments returns an item's attachments in database order.
	ListAttachments(ctx context.Context, id domain.ItemID) ([]domain.Attachment, error)

	// Close releases the snapshot.
	Close() error
}

// Opener produces a fresh Library snapshot for each export run.
type Opener interface {
	Open(ctx context.Context) (Library, error)
}
