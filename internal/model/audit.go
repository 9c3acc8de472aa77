package model

import (
	"encoding/json"
	"time"
)

// AuditEntry records a single mutating action.
type AuditEntry struct {
	ID          int64           `json:"id"`
	Action      string          `json:"action"`
	TableName   string          `json:"table_name"`
	RecordID    *string         `json:"record_id"`
	Details     json.RawMessage `json:"details"`
	Description string          `json:"description"`
	Actor       string          `json:"actor"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Audit actions.
const (
	ActionCreate              = "create"
	ActionGenerateIdentifiers = "generate_identifiers"
	ActionUpdate              = "update"
	ActionDelete              = "delete"
	ActionStatusChange        = "status_change"
	ActionBulkDelete          = "bulk_delete"
	ActionBulkStatusChange    = "bulk_status_change"
	ActionImport              = "import"
	ActionTaxonomyAdd         = "taxonomy_add"
	ActionTaxonomyDelete      = "taxonomy_delete"
	ActionTaxonomyBulkDelete  = "taxonomy_bulk_delete"
)

// Audited table names.
const (
	TableItems    = "items"
	TableTaxonomy = "taxonomy_options"
)

// AuditFilter narrows an audit log listing.
type AuditFilter struct {
	TableName string
	RecordID  string
	Limit     int
}
