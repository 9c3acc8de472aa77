package model

import "time"

// Kind names one of the shared vocabularies items are classified by.
type Kind string

// Taxonomy kinds.
const (
	KindCategory        Kind = "category"
	KindSubcategory     Kind = "subcategory"
	KindStorageLocation Kind = "storage_location"
	KindBinLocation     Kind = "bin_location"
	KindRoom            Kind = "room"
	KindVendor          Kind = "vendor"
	KindProject         Kind = "project"
)

// Kinds lists every taxonomy kind.
var Kinds = []Kind{
	KindCategory,
	KindSubcategory,
	KindStorageLocation,
	KindBinLocation,
	KindRoom,
	KindVendor,
	KindProject,
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Option is a named value within a taxonomy kind.
type Option struct {
	ID        int64     `json:"id"`
	Kind      Kind      `json:"kind"`
	Name      string    `json:"name"`
	Owner     *string   `json:"owner,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
