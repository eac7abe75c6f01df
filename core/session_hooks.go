package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// SessionHookCoordinator fans session transitions out to registered hooks
// in registration order.
type SessionHookCoordinator struct {
	mu    sync.RWMutex
	hooks []SessionHook
}

func NewSessionHookCoordinator() *SessionHookCoordinator {
	return &SessionHookCoordinator{hooks: make([]SessionHook, 0)}
}

func (c *SessionHookCoordinator) Register(hook SessionHook) {
	if c == nil || hook == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, hook)
}

// Notify runs every hook even when one fails. Failures are joined and
// returned for logging; the session transition itself has already happened.
func (c *SessionHookCoordinator) Notify(ctx context.Context, event SessionEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	var hookErr error
	for _, hook := range c.snapshot() {
		if err := hook.OnSessionEvent(ctx, event); err != nil {
			hookErr = errors.Join(hookErr, fmt.Errorf("session hook %q failed: %w", hookName(hook), err))
		}
	}
	return hookErr
}

func (c *SessionHookCoordinator) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.hooks)
}

func (c *SessionHookCoordinator) snapshot() []SessionHook {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]SessionHook, len(c.hooks))
	copy(out, c.hooks)
	return out
}

// SessionHookFunc adapts a function to SessionHook.
type SessionHookFunc struct {
	HookName string
	Fn       func(ctx context.Context, event SessionEvent) error
}

func (h SessionHookFunc) Name() string {
	return h.HookName
}

func (h SessionHookFunc) OnSessionEvent(ctx context.Context, event SessionEvent) error {
	if h.Fn == nil {
		return nil
	}
	return h.Fn(ctx, event)
}

func hookName(hook SessionHook) string {
	if hook == nil {
		return "unknown"
	}
	name := strings.TrimSpace(hook.Name())
	if name == "" {
		return "unnamed"
	}
	return name
}
