package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LibraryItemVersion is an immutable snapshot of a library item taken before a
// mutating update. Rows are append-only and never updated or deleted.
type LibraryItemVersion struct {
	ID            uuid.UUID       `json:"id"`
	LibraryItemID uuid.UUID       `json:"library_item_id"`
	VersionNumber int             `json:"version_number"`
	State         json.RawMessage `json:"state"`
	ChangeNote    string          `json:"change_note,omitempty"`
	CreatedBy     string          `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// VersionHistoryEntry is a ledger row enriched with a field-level change
// summary against the previous snapshot (a JSON merge patch).
type VersionHistoryEntry struct {
	LibraryItemVersion
	Changes json.RawMessage `json:"changes,omitempty"`
}
