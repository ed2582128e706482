package domain_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/notifyhub/realtime-notify/internal/domain"
)

func TestCreateNotificationRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     domain.CreateNotificationRequest
		wantErr error
	}{
		{
			name: "valid",
			req: domain.CreateNotificationRequest{
				Type: "message", Message: "hello", TargetUserIDs: []string{"u1"},
			},
			wantErr: nil,
		},
		{
			name:    "missing type",
			req:     domain.CreateNotificationRequest{Message: "hello", TargetUserIDs: []string{"u1"}},
			wantErr: domain.ErrInvalidType,
		},
		{
			name: "message at limit",
			req: domain.CreateNotificationRequest{
				Type: "t", Message: strings.Repeat("x", 4096), TargetUserIDs: []string{"u1"},
			},
			wantErr: nil,
		},
		{
			name: "message over limit",
			req: domain.CreateNotificationRequest{
				Type: "t", Message: strings.Repeat("x", 4097), TargetUserIDs: []string{"u1"},
			},
			wantErr: domain.ErrInvalidMessage,
		},
		{
			name:    "no targets",
			req:     domain.CreateNotificationRequest{Type: "t", Message: "m"},
			wantErr: domain.ErrNoTargets,
		},
		{
			name:    "empty target id",
			req:     domain.CreateNotificationRequest{Type: "t", Message: "m", TargetUserIDs: []string{""}},
			wantErr: domain.ErrInvalidTarget,
		},
		{
			name: "negative ttl",
			req: domain.CreateNotificationRequest{
				Type: "t", Message: "m", TargetUserIDs: []string{"u1"}, TTLMillis: -5,
			},
			wantErr: domain.ErrInvalidTTL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestBroadcastRequest_Validate(t *testing.T) {
	ok := domain.BroadcastRequest{Type: "announcement", Message: "hi"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	missingType := domain.BroadcastRequest{Message: "hi"}
	if err := missingType.Validate(); !errors.Is(err, domain.ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}

	negativeTTL := domain.BroadcastRequest{Type: "t", Message: "hi", TTLMillis: -1}
	if err := negativeTTL.Validate(); !errors.Is(err, domain.ErrInvalidTTL) {
		t.Fatalf("expected ErrInvalidTTL, got %v", err)
	}
}

func TestCreateNotificationRequest_TTL(t *testing.T) {
	req := domain.CreateNotificationRequest{TTLMillis: 1500}
	if got := req.TTL(); got != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s, got %v", got)
	}

	unset := domain.CreateNotificationRequest{}
	if got := unset.TTL(); got != 0 {
		t.Fatalf("expected zero duration for unset ttl, got %v", got)
	}
}

func TestNotification_MarkReadBy(t *testing.T) {
	n := domain.Notification{ReadBy: []string{}}

	n.MarkReadBy("u1")
	n.MarkReadBy("u1")
	n.MarkReadBy("u2")

	if len(n.ReadBy) != 2 {
		t.Fatalf("expected 2 distinct readers, got %v", n.ReadBy)
	}
	if !n.IsReadBy("u1") || !n.IsReadBy("u2") {
		t.Fatal("expected both users to be recorded")
	}
	if n.IsReadBy("u3") {
		t.Fatal("u3 never acknowledged")
	}
}

func TestNotification_IsTargetedAt(t *testing.T) {
	n := domain.Notification{TargetUserIDs: []string{"u1", "u2"}}

	if !n.IsTargetedAt("u1") {
		t.Fatal("expected u1 to be a target")
	}
	if n.IsTargetedAt("u3") {
		t.Fatal("u3 is not a target")
	}
}
