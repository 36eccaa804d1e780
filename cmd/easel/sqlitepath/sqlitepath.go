// Package sqlitepath resolves the SQLite database path shared by the easel
// CLI commands.
package sqlitepath

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultRelPath is the database location under the user home directory when
// no explicit path is given.
const DefaultRelPath = ".easel/easel.db"

// Resolve returns the explicit path when given, otherwise the default
// location under the user's home directory.
func Resolve(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}

	return filepath.Join(home, DefaultRelPath), nil
}
