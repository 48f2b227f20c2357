package profiles

import (
	"embed"
	"os"
	"path/filepath"
	"strings"
	"time"
)

//go:embed *.yaml
var ProfilesFS embed.FS

// Load reads a profile file, preferring a profiles/ directory on disk so the
// embedded defaults can be overridden without rebuilding.
func Load(name string) ([]byte, error) {
	clean := cleanPath(name)
	if data, err := os.ReadFile(diskPath(clean)); err == nil {
		return data, nil
	}
	return ProfilesFS.ReadFile(clean)
}

// ModTime reports the on-disk modification time of a profile override, if one
// exists.
func ModTime(name string) (time.Time, bool) {
	info, err := os.Stat(diskPath(cleanPath(name)))
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

func cleanPath(path string) string {
	if path == "" {
		return ""
	}
	s := filepath.ToSlash(path)
	return strings.TrimPrefix(s, "profiles/")
}

func diskPath(clean string) string {
	return filepath.Join("profiles", filepath.FromSlash(clean))
}
