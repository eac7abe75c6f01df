package core

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSessionHookCoordinator_RunsAllHooksInOrder(t *testing.T) {
	coordinator := NewSessionHookCoordinator()
	calls := make([]string, 0, 3)

	coordinator.Register(SessionHookFunc{
		HookName: "first",
		Fn: func(context.Context, SessionEvent) error {
			calls = append(calls, "first")
			return nil
		},
	})
	coordinator.Register(SessionHookFunc{
		HookName: "second",
		Fn: func(context.Context, SessionEvent) error {
			calls = append(calls, "second")
			return errors.New("fail")
		},
	})
	coordinator.Register(SessionHookFunc{
		HookName: "third",
		Fn: func(_ context.Context, event SessionEvent) error {
			calls = append(calls, "third")
			if event.OccurredAt.IsZero() {
				t.Fatalf("expected occurred_at to be stamped")
			}
			return nil
		},
	})
	coordinator.Register(nil)

	err := coordinator.Notify(context.Background(), SessionEvent{Name: SessionEventLogout})
	if err == nil {
		t.Fatalf("expected hook failure to surface")
	}
	if !strings.Contains(err.Error(), `"second"`) {
		t.Fatalf("expected failing hook name in error, got %v", err)
	}
	if strings.Join(calls, ",") != "first,second,third" {
		t.Fatalf("expected every hook to run in order, got %v", calls)
	}
	if coordinator.Len() != 3 {
		t.Fatalf("expected nil hook to be ignored, got %d hooks", coordinator.Len())
	}
}

func TestSessionHookCoordinator_NilSafe(t *testing.T) {
	var coordinator *SessionHookCoordinator
	coordinator.Register(SessionHookFunc{HookName: "ignored"})
	if err := coordinator.Notify(context.Background(), SessionEvent{Name: SessionEventCleared}); err != nil {
		t.Fatalf("expected nil coordinator to be a no-op, got %v", err)
	}
}
