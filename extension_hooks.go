package supasoka

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/core"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/realtime"
)

// EventBinding attaches one handler to one realtime event.
type EventBinding struct {
	Event   string
	Handler realtime.Handler
}

// EventPack is a named group of realtime handlers bound onto every channel
// the client creates.
type EventPack struct {
	Name     string
	Bindings []EventBinding
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

type eventBinder interface {
	On(event string, handler realtime.Handler) func()
}

type ExtensionHooks struct {
	mu sync.RWMutex

	eventPacks   map[string]EventPack
	sessionHooks []core.SessionHook
	bundles      map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		eventPacks: map[string]EventPack{},
		bundles:    map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterEventPack(pack EventPack) error {
	if h == nil {
		return fmt.Errorf("supasoka: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("supasoka: event pack name is required")
	}
	if len(pack.Bindings) == 0 {
		return fmt.Errorf("supasoka: event pack %q has no bindings", name)
	}
	bindings := make([]EventBinding, 0, len(pack.Bindings))
	for _, binding := range pack.Bindings {
		event := strings.TrimSpace(binding.Event)
		if event == "" || binding.Handler == nil {
			return fmt.Errorf("supasoka: event pack %q has an incomplete binding", name)
		}
		bindings = append(bindings, EventBinding{Event: event, Handler: binding.Handler})
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.eventPacks[name]; exists {
		return fmt.Errorf("supasoka: event pack %q already registered", name)
	}
	h.eventPacks[name] = EventPack{Name: name, Bindings: bindings}
	return nil
}

// RegisterSessionHook adds a hook notified on login, logout and credential
// clearing. Hooks must be registered before the client is built.
func (h *ExtensionHooks) RegisterSessionHook(hook core.SessionHook) error {
	if h == nil {
		return fmt.Errorf("supasoka: extension hooks are nil")
	}
	if hook == nil {
		return fmt.Errorf("supasoka: session hook is required")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessionHooks = append(h.sessionHooks, hook)
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("supasoka: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("supasoka: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("supasoka: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("supasoka: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(
	service CommandQueryService,
) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("supasoka: command/query service is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		names = append(names, name)
		factories[name] = factory
	}
	h.mu.RUnlock()
	sort.Strings(names)

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

// EventPacks returns the registered packs ordered by name.
func (h *ExtensionHooks) EventPacks() []EventPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.eventPacks))
	for name := range h.eventPacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]EventPack, 0, len(names))
	for _, name := range names {
		pack := h.eventPacks[name]
		out = append(out, EventPack{
			Name:     pack.Name,
			Bindings: append([]EventBinding(nil), pack.Bindings...),
		})
	}
	return out
}

func (h *ExtensionHooks) SessionHooks() []core.SessionHook {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]core.SessionHook(nil), h.sessionHooks...)
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *ExtensionHooks) bindEventPacks(binder eventBinder) []func() {
	if h == nil || binder == nil {
		return nil
	}
	var removers []func()
	for _, pack := range h.EventPacks() {
		for _, binding := range pack.Bindings {
			removers = append(removers, binder.On(binding.Event, binding.Handler))
		}
	}
	return removers
}
