package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type credentialRecord struct {
	bun.BaseModel `bun:"table:client_credentials,alias:cc"`

	ID            string    `bun:"id,pk"`
	CredentialKey string    `bun:"credential_key,notnull"`
	Payload       []byte    `bun:"payload,notnull"`
	Sealed        bool      `bun:"sealed,notnull"`
	Version       int       `bun:"version,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
