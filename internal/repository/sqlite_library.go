package repository

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	_ "modernc.org/sqlite"

	"github.com/mkessler/libmirror/internal/domain"
)

// SnapshotOpener opens point-in-time snapshots of a sqlite library
// database. Each Open copies the database file to a private temp file
// before connecting, so the export never contends with the owning
// application's lock and always reads a consistent state.
type SnapshotOpener struct {
	DBPath string
}

// Open copies the library database and connects to the copy.
func (o SnapshotOpener) Open(ctx context.Context) (Library, error) {
	if _, err := os.Stat(o.DBPath); err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", domain.ErrDatabaseUnavailable, o.DBPath, err)
	}

	tmp, err := os.CreateTemp("", "libmirror_snapshot_*.sqlite")
	if err != nil {
		return nil, fmt.Errorf("%w: create snapshot: %v", domain.ErrDatabaseUnavailable, err)
	}
	snapshotPath := tmp.Name()

	src, err := os.Open(o.DBPath)
	if err != nil {
		tmp.Close()
		os.Remove(snapshotPath)
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrDatabaseUnavailable, o.DBPath, err)
	}
	_, err = io.Copy(tmp, src)
	src.Close()
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(snapshotPath)
		return nil, fmt.Errorf("%w: copy database: %v", domain.ErrDatabaseUnavailable, err)
	}

	db, err := sql.Open("sqlite", snapshotPath)
	if err != nil {
		os.Remove(snapshotPath)
		return nil, fmt.Errorf("%w: open snapshot: %v", domain.ErrDatabaseUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		os.Remove(snapshotPath)
		return nil, fmt.Errorf("%w: ping snapshot: %v", domain.ErrDatabaseUnavailable, err)
	}

	return &SQLiteLibrary{db: db, snapshotPath: snapshotPath}, nil
}

// SQLiteLibrary reads a Zotero-schema sqlite snapshot.
type SQLiteLibrary struct {
	db           *sql.DB
	snapshotPath string
}

// Close closes the connection and removes the snapshot file.
func (l *SQLiteLibrary) Close() error {
	err := l.db.Close()
	if l.snapshotPath != "" {
		if rerr := os.Remove(l.snapshotPath); err == nil {
			err = rerr
		}
	}
	return err
}

// ListCollections returns the flat collection listing, ordered by name.
func (l *SQLiteLibrary) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	const query = `
		SELECT collectionID, collectionName, parentCollectionID
		FROM collections
		ORDER BY collectionName`

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	var collections []domain.Collection
	for rows.Next() {
		var c domain.Collection
		var parent sql.NullInt64
		if err := rows.Scan(&c.ID, &c.Name, &parent); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		if parent.Valid {
			id := domain.CollectionID(parent.Int64)
			c.ParentID = &id
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

// ListDirectItems returns a collection's own regular items. Notes and
// attachments are pseudo-items in this schema and never exported
// directly; their files are reached through their parent item.
func (l *SQLiteLibrary) ListDirectItems(ctx context.Context, id domain.CollectionID) ([]domain.Item, error) {
	const query = `
		SELECT i.itemID, i.key, it.typeName
		FROM items i
		JOIN collectionItems ci ON i.itemID = ci.itemID
		JOIN itemTypes it ON i.itemTypeID = it.itemTypeID
		WHERE ci.collectionID = ?
		  AND it.typeName NOT IN ('note', 'attachment')`

	rows, err := l.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query collection items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.ID, &it.Key, &it.TypeLabel); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetItemMetadata reads an item's title, date and primary author. The
// schema stores fields as entity-attribute-value rows; the primary
// author is the creator with the lowest order index.
func (l *SQLiteLibrary) GetItemMetadata(ctx context.Context, id domain.ItemID) (domain.ItemMetadata, error) {
	var meta domain.ItemMetadata

	const fieldQuery = `
		SELECT f.fieldName, v.value
		FROM itemData d
		JOIN itemDataValues v ON d.valueID = v.valueID
		JOIN fields f ON d.fieldID = f.fieldID
		WHERE d.itemID = ?
		  AND f.fieldName IN ('title', 'date')`

	rows, err := l.db.QueryContext(ctx, fieldQuery, id)
	if err != nil {
		return meta, fmt.Errorf("query item fields: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return meta, fmt.Errorf("scan item field: %w", err)
		}
		switch name {
		case "title":
			meta.Title = value
		case "date":
			meta.Date = value
		}
	}
	if err := rows.Err(); err != nil {
		return meta, err
	}

	const creatorQuery = `
		SELECT c.lastName
		FROM itemCreators ic
		JOIN creators c ON ic.creatorID = c.creatorID
		WHERE ic.itemID = ?
		ORDER BY ic.orderIndex
		LIMIT 1`

	err = l.db.QueryRowContext(ctx, creatorQuery, id).Scan(&meta.AuthorSurname)
	if err != nil && err != sql.ErrNoRows {
		return meta, fmt.Errorf("query item creator: %w", err)
	}

	return meta, nil
}

// ListAttachments returns an item's attachments in database order.
func (l *SQLiteLibrary) ListAttachments(ctx context.Context, id domain.ItemID) ([]domain.Attachment, error) {
	const query = `
		SELECT ia.itemID, i.key, ia.path, ia.contentType
		FROM itemAttachments ia
		JOIN items i ON ia.itemID = i.itemID
		WHERE ia.parentItemID = ?`

	rows, err := l.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query attachments: %w", err)
	}
	defer rows.Close()

	var attachments []domain.Attachment
	for rows.Next() {
		var itemID domain.ItemID
		var key string
		var rawPath, contentType sql.NullString
		if err := rows.Scan(&itemID, &key, &rawPath, &contentType); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		attachments = append(attachments, domain.ClassifyAttachment(itemID, key, rawPath.String, contentType.String))
	}
	return attachments, rows.Err()
}
