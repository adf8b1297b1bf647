// Package toolconfig loads the user-level Anima configuration file that
// locates the external tool installation and the auxiliary scripts.
//
// The file is the INI document shared with the Anima python scripts:
//
//	[anima-scripts]
//	anima = /opt/anima/bin
//	anima-scripts-public-root = /opt/anima-scripts-public
//
// An optional "python" key selects the interpreter used to run scripts.
package toolconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

const (
	section       = "anima-scripts"
	keyAnima      = "anima"
	keyScriptRoot = "anima-scripts-public-root"
	keyPython     = "python"

	defaultPython = "python3"
)

// ConfigError reports a missing or malformed configuration file.
type ConfigError struct {
	Path string
	Msg  string
	Err  error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("anima configuration %s: %s", e.Path, e.Msg)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Config is the resolved tool configuration. It is loaded once at process
// start and handed to every component that needs a tool path.
type Config struct {
	AnimaDir   string
	ScriptsDir string
	Python     string
}

// Tool returns the absolute path of an Anima executable.
func (c *Config) Tool(name string) string {
	return filepath.Join(c.AnimaDir, name)
}

// Script returns the path of a script below the public scripts root.
func (c *Config) Script(parts ...string) string {
	return filepath.Join(append([]string{c.ScriptsDir}, parts...)...)
}

// DefaultPath returns ~/.anima/config.txt.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", &ConfigError{Path: "~/.anima/config.txt", Msg: "cannot locate home directory", Err: err}
	}
	return filepath.Join(home, ".anima", "config.txt"), nil
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigError{Path: path, Msg: "file not found, please create a configuration file for Anima scripts (see the README)", Err: err}
		}
		return nil, &ConfigError{Path: path, Msg: "cannot access file", Err: err}
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Msg: "cannot parse file", Err: err}
	}

	sec, err := file.GetSection(section)
	if err != nil {
		return nil, &ConfigError{Path: path, Msg: fmt.Sprintf("missing [%s] section", section), Err: err}
	}

	cfg := &Config{Python: defaultPython}
	for key, dst := range map[string]*string{keyAnima: &cfg.AnimaDir, keyScriptRoot: &cfg.ScriptsDir} {
		if !sec.HasKey(key) || sec.Key(key).String() == "" {
			return nil, &ConfigError{Path: path, Msg: fmt.Sprintf("missing %q in [%s]", key, section)}
		}
		*dst = sec.Key(key).String()
	}
	if sec.HasKey(keyPython) && sec.Key(keyPython).String() != "" {
		cfg.Python = sec.Key(keyPython).String()
	}

	return cfg, nil
}
