package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestEnsureTransitionRecordImmutable(t *testing.T) {
	base := TransitionRecord{
		ID:                "tr-1",
		SiteID:            "site-1",
		Domain:            TransitionDomainLease,
		EntityID:          "lease-1",
		FromStatus:        "signed",
		ToStatus:          "active",
		Type:              TransitionTypeManual,
		ConfirmationAck:   true,
		ChecklistSnapshot: json.RawMessage(`{"total":7,"completed":7}`),
		Actor:             "ops@example.com",
		CreatedAt:         time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	if err := EnsureTransitionRecordImmutable(base, base); err != nil {
		t.Fatalf("identical records: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*TransitionRecord)
		wantErr string
	}{
		{name: "id change", mutate: func(r *TransitionRecord) { r.ID = "tr-2" }, wantErr: "transition record id changed"},
		{name: "entity change", mutate: func(r *TransitionRecord) { r.EntityID = "lease-9" }, wantErr: "entity id is immutable"},
		{name: "to status change", mutate: func(r *TransitionRecord) { r.ToStatus = "terminated" }, wantErr: "to status is immutable"},
		{name: "ack change", mutate: func(r *TransitionRecord) { r.ConfirmationAck = false }, wantErr: "confirmation ack is immutable"},
		{
			name:    "snapshot change",
			mutate:  func(r *TransitionRecord) { r.ChecklistSnapshot = json.RawMessage(`{"total":7,"completed":6}`) },
			wantErr: "checklist snapshot is immutable",
		},
		{name: "actor change", mutate: func(r *TransitionRecord) { r.Actor = "someone-else" }, wantErr: "actor is immutable"},
		{
			name:    "created at change",
			mutate:  func(r *TransitionRecord) { r.CreatedAt = r.CreatedAt.Add(time.Second) },
			wantErr: "created at is immutable",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			after := base
			tc.mutate(&after)
			err := EnsureTransitionRecordImmutable(base, after)
			if err == nil {
				t.Fatalf("want error containing %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}
