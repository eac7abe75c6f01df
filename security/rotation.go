package security

import (
	"context"
	"fmt"
	"time"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/core"
)

// KeyRotationWindow bounds when a retired key may still open credentials.
type KeyRotationWindow struct {
	NotBefore time.Time
	NotAfter  time.Time
}

func (w KeyRotationWindow) Allows(at time.Time) bool {
	ts := at.UTC()
	if !w.NotBefore.IsZero() && ts.Before(w.NotBefore.UTC()) {
		return false
	}
	if !w.NotAfter.IsZero() && ts.After(w.NotAfter.UTC()) {
		return false
	}
	return true
}

// RetiredKey is a previous device key kept for reading credentials sealed
// before a rotation.
type RetiredKey struct {
	Provider *AppKeySecretProvider
	Window   KeyRotationWindow
}

type RotationDiagnostic struct {
	OccurredAt time.Time
	Operation  string
	Outcome    string
	KeyID      string
	Version    int
	Error      string
}

type RotationDiagnosticHook func(event RotationDiagnostic)

type RotationOption func(*RotatingSecretProvider)

func WithRetiredKey(provider *AppKeySecretProvider, window KeyRotationWindow) RotationOption {
	return func(p *RotatingSecretProvider) {
		if provider != nil {
			p.retired = append(p.retired, RetiredKey{Provider: provider, Window: window})
		}
	}
}

func WithRotationDiagnostics(hook RotationDiagnosticHook) RotationOption {
	return func(p *RotatingSecretProvider) {
		p.diagnosticHook = hook
	}
}

func WithRotationClock(now func() time.Time) RotationOption {
	return func(p *RotatingSecretProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// RotatingSecretProvider seals with the current key and opens with whichever
// key stamped the envelope, including retired keys inside their window.
type RotatingSecretProvider struct {
	current        *AppKeySecretProvider
	retired        []RetiredKey
	diagnosticHook RotationDiagnosticHook
	now            func() time.Time
}

func NewRotatingSecretProvider(current *AppKeySecretProvider, opts ...RotationOption) (*RotatingSecretProvider, error) {
	if current == nil {
		return nil, fmt.Errorf("security: current secret provider is required")
	}
	provider := &RotatingSecretProvider{
		current: current,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(provider)
	}
	return provider, nil
}

func (p *RotatingSecretProvider) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	return p.current.Encrypt(ctx, plaintext)
}

func (p *RotatingSecretProvider) Decrypt(ctx context.Context, sealed []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	meta, err := ParseEnvelopeMetadata(sealed)
	if err != nil {
		return nil, err
	}
	if p.current.Accepts(meta) {
		return p.current.Decrypt(ctx, sealed)
	}
	now := p.now()
	for _, retired := range p.retired {
		if !retired.Provider.Accepts(meta) {
			continue
		}
		if !retired.Window.Allows(now) {
			p.emit("decrypt", "retired_key_expired", meta, nil)
			return nil, fmt.Errorf("security: key %s:%d is retired", meta.KeyID, meta.Version)
		}
		plaintext, decryptErr := retired.Provider.Decrypt(ctx, sealed)
		if decryptErr != nil {
			p.emit("decrypt", "retired_key_failed", meta, decryptErr)
			return nil, decryptErr
		}
		p.emit("decrypt", "retired_key_used", meta, nil)
		return plaintext, nil
	}
	p.emit("decrypt", "unknown_key", meta, nil)
	return nil, fmt.Errorf("security: no key for %s:%d", meta.KeyID, meta.Version)
}

// NeedsRekey reports whether sealed was produced by a key other than the
// current one.
func (p *RotatingSecretProvider) NeedsRekey(sealed []byte) bool {
	meta, err := ParseEnvelopeMetadata(sealed)
	if err != nil {
		return false
	}
	return !p.current.Accepts(meta)
}

func (p *RotatingSecretProvider) Metadata() (string, int) {
	if p == nil {
		return "", 0
	}
	return p.current.Metadata()
}

func (p *RotatingSecretProvider) emit(operation string, outcome string, meta EnvelopeMetadata, err error) {
	if p.diagnosticHook == nil {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	p.diagnosticHook(RotationDiagnostic{
		OccurredAt: p.now().UTC(),
		Operation:  operation,
		Outcome:    outcome,
		KeyID:      meta.KeyID,
		Version:    meta.Version,
		Error:      msg,
	})
}

var _ core.SecretProvider = (*RotatingSecretProvider)(nil)
