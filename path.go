package bagextract

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// ExpandPath expands a leading ~ or ~user and returns the absolute path. Like a shell,
// an unknown user leaves the path as it is.
func ExpandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		name, rest, _ := strings.Cut(path[1:], string(filepath.Separator))

		var home string
		if name == "" {
			dir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			home = dir
		} else if u, err := user.Lookup(name); err == nil {
			home = u.HomeDir
		}

		if home != "" {
			path = filepath.Join(home, rest)
		}
	}

	return filepath.Abs(path)
}
