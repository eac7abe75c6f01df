package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/core"
)

// CredentialStore persists the session credential as one row of
// client_credentials keyed by credential key. When a secret provider is
// configured the payload is sealed at rest.
type CredentialStore struct {
	db      *bun.DB
	repo    repository.Repository[*credentialRecord]
	key     string
	secrets core.SecretProvider
}

type CredentialStoreOption func(*CredentialStore)

func WithSecretProvider(secrets core.SecretProvider) CredentialStoreOption {
	return func(s *CredentialStore) {
		s.secrets = secrets
	}
}

func NewCredentialStore(db *bun.DB, credentialKey string, opts ...CredentialStoreOption) (*CredentialStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	credentialKey = strings.TrimSpace(credentialKey)
	if credentialKey == "" {
		credentialKey = core.DefaultConfig().Session.CredentialKey
	}
	repo := repository.NewRepository[*credentialRecord](db, credentialHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid credential repository wiring: %w", err)
		}
	}
	store := &CredentialStore{db: db, repo: repo, key: credentialKey}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(store)
	}
	return store, nil
}

func (s *CredentialStore) Key() string {
	if s == nil {
		return ""
	}
	return s.key
}

func (s *CredentialStore) Load(ctx context.Context) (string, error) {
	if s == nil || s.repo == nil {
		return "", fmt.Errorf("sqlstore: credential store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("credential_key", "=", s.key),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return "", core.NewInternalError("sqlstore: load credential", err)
	}
	if len(records) == 0 || records[0] == nil {
		return "", nil
	}
	record := records[0]
	if !record.Sealed {
		return string(record.Payload), nil
	}
	if s.secrets == nil {
		return "", core.NewInternalError("sqlstore: credential is sealed but no secret provider is configured", nil)
	}
	plaintext, err := s.secrets.Decrypt(ctx, record.Payload)
	if err != nil {
		return "", core.NewInternalError("sqlstore: open credential", err)
	}
	return string(plaintext), nil
}

// Save overwrites the stored credential, bumping its version.
func (s *CredentialStore) Save(ctx context.Context, credential string) error {
	if s == nil || s.repo == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	if strings.TrimSpace(credential) == "" {
		return core.NewBadInputError("sqlstore: credential is required", nil)
	}
	payload := []byte(credential)
	sealed := false
	if s.secrets != nil {
		encrypted, err := s.secrets.Encrypt(ctx, payload)
		if err != nil {
			return core.NewInternalError("sqlstore: seal credential", err)
		}
		payload, sealed = encrypted, true
	}
	now := time.Now().UTC()

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := new(credentialRecord)
		selectErr := tx.NewSelect().
			Model(existing).
			Where("?TableAlias.credential_key = ?", s.key).
			Limit(1).
			Scan(ctx)
		switch {
		case errors.Is(selectErr, sql.ErrNoRows):
			_, createErr := s.repo.CreateTx(ctx, tx, &credentialRecord{
				ID:            uuid.NewString(),
				CredentialKey: s.key,
				Payload:       payload,
				Sealed:        sealed,
				Version:       1,
				CreatedAt:     now,
				UpdatedAt:     now,
			})
			return createErr
		case selectErr != nil:
			return selectErr
		}
		_, updateErr := tx.NewUpdate().
			Model((*credentialRecord)(nil)).
			Set("payload = ?", payload).
			Set("sealed = ?", sealed).
			Set("version = ?", existing.Version+1).
			Set("updated_at = ?", now).
			Where("credential_key = ?", s.key).
			Exec(ctx)
		return updateErr
	})
	if err != nil {
		return core.NewInternalError("sqlstore: save credential", err)
	}
	return nil
}

func (s *CredentialStore) Erase(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	if _, err := s.db.NewDelete().
		Model((*credentialRecord)(nil)).
		Where("credential_key = ?", s.key).
		Exec(ctx); err != nil {
		return core.NewInternalError("sqlstore: erase credential", err)
	}
	return nil
}

// Version returns how many times the credential was saved since it was
// last erased, or zero when none is stored.
func (s *CredentialStore) Version(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: credential store is not configured")
	}
	record := new(credentialRecord)
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.credential_key = ?", s.key).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return record.Version, nil
}
