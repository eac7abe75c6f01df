package gocommand

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
)

// RegistryAdapter registers handlers with a go-command registry and owns the
// dispatcher subscriptions created for them. Each message type may be bound
// once per adapter.
type RegistryAdapter struct {
	registry *command.Registry

	mu            sync.Mutex
	types         map[string]struct{}
	subscriptions []commanddispatcher.Subscription
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry, types: map[string]struct{}{}}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

// Len reports how many subscriptions the adapter holds.
func (a *RegistryAdapter) Len() int {
	if a == nil {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.subscriptions)
}

// Types lists the bound message types.
func (a *RegistryAdapter) Types() []string {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.types))
	for name := range a.types {
		out = append(out, name)
	}
	return out
}

// Close unsubscribes every handler, newest first, and forgets their types.
func (a *RegistryAdapter) Close() {
	if a == nil {
		return
	}
	a.mu.Lock()
	subscriptions := a.subscriptions
	a.subscriptions = nil
	a.types = map[string]struct{}{}
	a.mu.Unlock()
	for i := len(subscriptions) - 1; i >= 0; i-- {
		if subscriptions[i] != nil {
			subscriptions[i].Unsubscribe()
		}
	}
}

func (a *RegistryAdapter) claim(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.types[name]; exists {
		return fmt.Errorf("gocommand: %s already registered", name)
	}
	a.types[name] = struct{}{}
	return nil
}

func (a *RegistryAdapter) release(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.types, name)
}

func (a *RegistryAdapter) keep(subscription commanddispatcher.Subscription) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subscriptions = append(a.subscriptions, subscription)
}

// bind claims the message type, subscribes, then registers the handler. A
// failed registration drops the subscription and the claim.
func (a *RegistryAdapter) bind(name string, handler any, subscribe func() commanddispatcher.Subscription) (commanddispatcher.Subscription, error) {
	if err := a.claim(name); err != nil {
		return nil, err
	}
	subscription := subscribe()
	if err := a.registry.RegisterCommand(handler); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		a.release(name)
		return nil, fmt.Errorf("gocommand: register %s: %w", name, err)
	}
	a.keep(subscription)
	return subscription, nil
}

// messageType returns the Type() of T's zero value.
func messageType[T any]() (string, error) {
	var zero T
	msg, ok := any(zero).(command.Message)
	if !ok {
		return "", fmt.Errorf("gocommand: %T must implement Type() string", zero)
	}
	name := strings.TrimSpace(msg.Type())
	if name == "" {
		return "", fmt.Errorf("gocommand: %T has an empty message type", zero)
	}
	return name, nil
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	name, err := messageType[T]()
	if err != nil {
		return nil, err
	}
	return adapter.bind(name, cmd, func() commanddispatcher.Subscription {
		return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	})
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	name, err := messageType[T]()
	if err != nil {
		return nil, err
	}
	return adapter.bind(name, qry, func() commanddispatcher.Subscription {
		return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	})
}
