package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItemStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from    ItemStatus
		to      ItemStatus
		allowed bool
	}{
		{StatusDraft, StatusConfirmed, true},
		{StatusConfirmed, StatusActual, true},
		{StatusConfirmed, StatusDraft, true},
		{StatusActual, StatusDraft, true},

		// No skipping forward, no self-transitions, no actual -> confirmed
		{StatusDraft, StatusActual, false},
		{StatusActual, StatusConfirmed, false},
		{StatusDraft, StatusDraft, false},
		{StatusConfirmed, StatusConfirmed, false},
		{StatusActual, StatusActual, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestItemStatus_Valid(t *testing.T) {
	assert.True(t, StatusDraft.Valid())
	assert.True(t, StatusConfirmed.Valid())
	assert.True(t, StatusActual.Valid())
	assert.False(t, ItemStatus("archived").Valid())
}
