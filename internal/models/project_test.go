package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMilestoneIsOverdue(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name    string
		status  string
		dueDate time.Time
		want    bool
	}{
		{"pending с истёкшим сроком", MilestoneStatusPending, past, true},
		{"rejected с истёкшим сроком", MilestoneStatusRejected, past, true},
		{"pending до срока", MilestoneStatusPending, future, false},
		{"pending ровно в срок", MilestoneStatusPending, now, false},
		{"submitted с истёкшим сроком", MilestoneStatusSubmitted, past, false},
		{"approved с истёкшим сроком", MilestoneStatusApproved, past, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Milestone{Status: tt.status, DueDate: tt.dueDate}
			assert.Equal(t, tt.want, m.IsOverdue(now))
		})
	}
}

func TestMilestoneIsTerminal(t *testing.T) {
	assert.True(t, (&Milestone{Status: MilestoneStatusApproved}).IsTerminal())
	assert.False(t, (&Milestone{Status: MilestoneStatusSubmitted}).IsTerminal())
	assert.False(t, (&Milestone{Status: MilestoneStatusRejected}).IsTerminal())
}
