package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/sitewise/estimator/common/logger"
	"github.com/sitewise/estimator/common/models"
)

// ledger wraps the version store with the snapshot-before-update discipline.
// Snapshots are tagged with the item's current version number; the increment
// happens on the update itself. Write failures are logged and swallowed so an
// audit problem never fails a user-facing mutation.
type ledger struct {
	versions VersionStore
	log      *logger.Logger
}

// snapshot appends the item's current state to the ledger
func (l *ledger) snapshot(ctx context.Context, item *models.LibraryItem, changeNote, createdBy string) {
	state, err := json.Marshal(item)
	if err != nil {
		l.log.Error("failed to serialize item for version snapshot",
			"item_id", item.ID, "error", err)
		return
	}

	version := &models.LibraryItemVersion{
		ID:            uuid.New(),
		LibraryItemID: item.ID,
		VersionNumber: item.Version,
		State:         state,
		ChangeNote:    changeNote,
		CreatedBy:     createdBy,
		CreatedAt:     time.Now().UTC(),
	}

	if err := l.versions.Create(ctx, version); err != nil {
		// Best-effort audit: the primary mutation proceeds regardless
		l.log.Error("failed to write version snapshot",
			"item_id", item.ID, "version", item.Version, "error", err)
	}
}

// historyWithDiffs decorates snapshots (newest first) with a merge patch
// against the previous snapshot. The oldest snapshot has no diff.
func historyWithDiffs(versions []*models.LibraryItemVersion) []*models.VersionHistoryEntry {
	entries := make([]*models.VersionHistoryEntry, 0, len(versions))

	for i, v := range versions {
		entry := &models.VersionHistoryEntry{LibraryItemVersion: *v}

		if i+1 < len(versions) {
			previous := versions[i+1]
			if patch, err := jsonpatch.CreateMergePatch(previous.State, v.State); err == nil {
				entry.Changes = patch
			}
		}

		entries = append(entries, entry)
	}

	return entries
}
