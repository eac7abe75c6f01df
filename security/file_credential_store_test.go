package security

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestFileStore(t *testing.T, secrets interface {
	Encrypt(context.Context, []byte) ([]byte, error)
	Decrypt(context.Context, []byte) ([]byte, error)
}) *FileCredentialStore {
	t.Helper()
	store, err := NewFileCredentialStore(filepath.Join(t.TempDir(), "session", "credential"), secrets)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	return store
}

func TestFileCredentialStore_SaveLoadErase(t *testing.T) {
	provider, _ := NewAppKeySecretProviderFromString("device-key")
	store := newTestFileStore(t, provider)
	ctx := context.Background()

	if token, err := store.Load(ctx); err != nil || token != "" {
		t.Fatalf("expected empty load before save, got %q %v", token, err)
	}
	if err := store.Save(ctx, "tok_abc"); err != nil {
		t.Fatalf("save: %v", err)
	}

	info, err := os.Stat(store.Path())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != credentialFileMode {
		t.Fatalf("expected owner-only file mode, got %v", info.Mode().Perm())
	}
	raw, _ := os.ReadFile(store.Path())
	if bytes.Contains(raw, []byte("tok_abc")) {
		t.Fatalf("expected credential sealed at rest")
	}

	if token, err := store.Load(ctx); err != nil || token != "tok_abc" {
		t.Fatalf("expected stored token, got %q %v", token, err)
	}
	if err := store.Erase(ctx); err != nil {
		t.Fatalf("erase: %v", err)
	}
	if err := store.Erase(ctx); err != nil {
		t.Fatalf("expected erase to be idempotent, got %v", err)
	}
	if token, _ := store.Load(ctx); token != "" {
		t.Fatalf("expected empty load after erase, got %q", token)
	}
}

func TestFileCredentialStore_ResealsRetiredKeyCredential(t *testing.T) {
	oldKey, _ := NewAppKeySecretProviderFromString("old-device-key", WithVersion(1))
	newKey, _ := NewAppKeySecretProviderFromString("new-device-key", WithVersion(2))
	rotating, err := NewRotatingSecretProvider(newKey, WithRetiredKey(oldKey, KeyRotationWindow{}))
	if err != nil {
		t.Fatalf("new rotating provider: %v", err)
	}

	legacyStore := newTestFileStore(t, oldKey)
	if err := legacyStore.Save(context.Background(), "tok_legacy"); err != nil {
		t.Fatalf("legacy save: %v", err)
	}
	store, err := NewFileCredentialStore(legacyStore.Path(), rotating)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if token, err := store.Load(context.Background()); err != nil || token != "tok_legacy" {
		t.Fatalf("expected legacy token, got %q %v", token, err)
	}
	raw, _ := os.ReadFile(store.Path())
	meta, err := ParseEnvelopeMetadata(raw)
	if err != nil {
		t.Fatalf("parse metadata: %v", err)
	}
	if meta.Version != 2 {
		t.Fatalf("expected credential resealed with current key, got version %d", meta.Version)
	}
}

func TestFileCredentialStore_RejectsBlankInput(t *testing.T) {
	provider, _ := NewAppKeySecretProviderFromString("device-key")
	if _, err := NewFileCredentialStore(" ", provider); err == nil {
		t.Fatalf("expected blank path to be rejected")
	}
	if _, err := NewFileCredentialStore("/tmp/x", nil); err == nil {
		t.Fatalf("expected missing secret provider to be rejected")
	}
	store := newTestFileStore(t, provider)
	if err := store.Save(context.Background(), "  "); err == nil {
		t.Fatalf("expected blank credential to be rejected")
	}
}
