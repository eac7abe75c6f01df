package security

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/core"
)

const credentialFileMode fs.FileMode = 0o600

type rekeyer interface {
	NeedsRekey(sealed []byte) bool
}

// FileCredentialStore keeps the session credential sealed in a single file
// readable only by the owner.
type FileCredentialStore struct {
	path    string
	secrets core.SecretProvider
	logger  core.Logger

	mu sync.Mutex
}

type FileStoreOption func(*FileCredentialStore)

func WithStoreLogger(logger core.Logger) FileStoreOption {
	return func(s *FileCredentialStore) {
		s.logger = logger
	}
}

func NewFileCredentialStore(path string, secrets core.SecretProvider, opts ...FileStoreOption) (*FileCredentialStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, core.NewBadInputError("security: credential file path is required", nil)
	}
	if secrets == nil {
		return nil, core.NewBadInputError("security: secret provider is required", nil)
	}
	store := &FileCredentialStore{path: filepath.Clean(path), secrets: secrets}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(store)
	}
	store.logger = core.ResolveLogger("supasoka.security", nil, store.logger)
	return store, nil
}

func (s *FileCredentialStore) Path() string {
	return s.path
}

// Load returns "" when no credential is stored. A credential sealed by a
// retired key is resealed with the current one.
func (s *FileCredentialStore) Load(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", core.NewInternalError("security: read credential file", err)
	}
	if len(strings.TrimSpace(string(sealed))) == 0 {
		return "", nil
	}
	plaintext, err := s.secrets.Decrypt(ctx, sealed)
	if err != nil {
		return "", core.NewInternalError("security: open credential", err)
	}
	if rotating, ok := s.secrets.(rekeyer); ok && rotating.NeedsRekey(sealed) {
		if resealErr := s.writeLocked(ctx, string(plaintext)); resealErr != nil {
			s.logger.Warn("credential reseal failed", "path", s.path, "error", resealErr.Error())
		} else {
			s.logger.Info("credential resealed with current key", "path", s.path)
		}
	}
	return string(plaintext), nil
}

func (s *FileCredentialStore) Save(ctx context.Context, credential string) error {
	if strings.TrimSpace(credential) == "" {
		return core.NewBadInputError("security: credential is required", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(ctx, credential)
}

func (s *FileCredentialStore) Erase(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return core.NewInternalError("security: remove credential file", err)
	}
	return nil
}

// writeLocked replaces the file atomically via a temp file in the same
// directory.
func (s *FileCredentialStore) writeLocked(ctx context.Context, credential string) error {
	sealed, err := s.secrets.Encrypt(ctx, []byte(credential))
	if err != nil {
		return core.NewInternalError("security: seal credential", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return core.NewInternalError("security: create credential dir", err)
	}
	tmp, err := os.CreateTemp(dir, ".credential-*")
	if err != nil {
		return core.NewInternalError("security: create temp credential file", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }
	if err := tmp.Chmod(credentialFileMode); err != nil {
		_ = tmp.Close()
		cleanup()
		return core.NewInternalError("security: chmod credential file", err)
	}
	if _, err := tmp.Write(sealed); err != nil {
		_ = tmp.Close()
		cleanup()
		return core.NewInternalError("security: write credential file", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return core.NewInternalError("security: close credential file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return core.NewInternalError("security: replace credential file", err)
	}
	return nil
}

var _ core.CredentialStore = (*FileCredentialStore)(nil)
