package sqlstore

import "github.com/ghettodevelopers/Supasoka-backend-sub002/core"

var (
	_ core.CredentialStore = (*CredentialStore)(nil)
)
