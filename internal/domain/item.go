package domain

// ItemID identifies a bibliographic item in the library database.
type ItemID int64

// Item is a regular bibliographic entry. Note and attachment
// pseudo-items are filtered out at the repository layer.
type Item struct {
	ID        ItemID
	Key       string
	TypeLabel string
}

// ItemMetadata carries the raw metadata fields used to derive an
// exported filename. Empty strings mean the field is absent in the
// library; placeholder substitution happens at formatting time so the
// raw values stay inspectable.
type ItemMetadata struct {
	Title         string
	Date          string
	AuthorSurname string
}
