package supasoka

import (
	"io/fs"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/migrations"
)

// GetMigrationsFS returns the embedded credential store migrations,
// including the sqlite alternatives.
func GetMigrationsFS() fs.FS {
	return migrations.FS()
}
