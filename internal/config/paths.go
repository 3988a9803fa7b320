package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// appDir is the folder name chatwire claims under each base directory.
const appDir = "chatwire"

// Paths locates chatwire's directories following the XDG convention.
type Paths struct {
	Data   string // ~/.local/share/chatwire
	Config string // ~/.config/chatwire
	Cache  string // ~/.cache/chatwire
	State  string // ~/.local/state/chatwire
}

// GetPaths resolves the XDG base directories, falling back to the
// conventional dotfile locations when the variables are unset. Windows
// has no XDG homes, so everything lands under APPDATA.
func GetPaths() *Paths {
	home := os.Getenv("HOME")
	data := filepath.Join(home, ".local", "share")
	conf := filepath.Join(home, ".config")
	cache := filepath.Join(home, ".cache")
	state := filepath.Join(home, ".local", "state")

	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		data, conf, state = appData, appData, appData
		cache = filepath.Join(appData, "cache")
	}

	return &Paths{
		Data:   appPath("XDG_DATA_HOME", data),
		Config: appPath("XDG_CONFIG_HOME", conf),
		Cache:  appPath("XDG_CACHE_HOME", cache),
		State:  appPath("XDG_STATE_HOME", state),
	}
}

// appPath prefers the XDG variable over the platform fallback and
// appends the chatwire folder.
func appPath(envKey, fallback string) string {
	base := os.Getenv(envKey)
	if base == "" {
		base = fallback
	}
	return filepath.Join(base, appDir)
}

// EnsurePaths creates every directory the process may write to.
func (p *Paths) EnsurePaths() error {
	for _, dir := range []string{p.Data, p.Config, p.Cache, p.State} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// StoragePath returns the session storage directory.
func (p *Paths) StoragePath() string {
	return filepath.Join(p.Data, "storage")
}

// GlobalConfigPath returns the per-user config file location.
func GlobalConfigPath() string {
	return filepath.Join(GetPaths().Config, "chatwire.json")
}

// ProjectConfigPath returns the config file location inside a project
// checkout.
func ProjectConfigPath(directory string) string {
	return filepath.Join(directory, ".chatwire", "chatwire.json")
}
