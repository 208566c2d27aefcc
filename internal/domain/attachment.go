package domain

import (
	"path"
	"path/filepath"
	"strings"
)

// storagePrefix marks an attachment stored in the managed pool.
const storagePrefix = "storage:"

// AttachmentKind classifies where an attachment's bytes live.
type AttachmentKind string

const (
	// AttachmentStorage lives in the managed storage pool, addressed by
	// the attachment key.
	AttachmentStorage AttachmentKind = "storage"

	// AttachmentLinked is referenced by an absolute path outside the pool.
	AttachmentLinked AttachmentKind = "linked"

	// AttachmentUnknown carries no resolvable path and is skipped with a
	// warning at copy time.
	AttachmentUnknown AttachmentKind = "unknown"
)

// Attachment is a file associated with an item.
type Attachment struct {
	ItemID       ItemID
	Key          string
	Kind         AttachmentKind
	Filename     string
	AbsolutePath string
	ContentType  string
}

// ClassifyAttachment builds an Attachment from a raw database record.
// A path with the storage prefix is a pooled file, any other non-empty
// path is a linked file, and an empty path is unresolvable.
func ClassifyAttachment(itemID ItemID, key, rawPath, contentType string) Attachment {
	att := Attachment{
		ItemID:      itemID,
		Key:         key,
		ContentType: contentType,
	}

	switch {
	case rawPath == "":
		att.Kind = AttachmentUnknown
	case strings.HasPrefix(rawPath, storagePrefix):
		att.Kind = AttachmentStorage
		att.Filename = strings.TrimPrefix(rawPath, storagePrefix)
	default:
		att.Kind = AttachmentLinked
		att.AbsolutePath = rawPath
		att.Filename = path.Base(filepath.ToSlash(rawPath))
	}

	return att
}

// SourcePath resolves the on-disk location of the attachment bytes.
// Returns false for unknown attachments and storage records with no
// filename.
func (a Attachment) SourcePath(storageRoot string) (string, bool) {
	switch a.Kind {
	case AttachmentStorage:
		if a.Filename == "" {
			return "", false
		}
		return filepath.Join(storageRoot, a.Key, a.Filename), true
	case AttachmentLinked:
		return a.AbsolutePath, true
	default:
		return "", false
	}
}

// Ext returns the attachment's file extension including the leading
// dot, or an empty string if it has none.
func (a Attachment) Ext() string {
	return filepath.Ext(a.Filename)
}
