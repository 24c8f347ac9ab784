package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/logger"
)

// Save writes cfg to path as YAML: the previous file is kept as path.bak and
// the new content is renamed into place.
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := checkWritePermission(path); err != nil {
		return err
	}

	if err := backupConfig(path); err != nil {
		logger.L.WithError(err).Warn("failed to create config backup")
	}

	data, err := Marshal(cfg)
	if err != nil {
		var ic *InvalidConfigError
		if errors.As(err, &ic) {
			ic.Path = path
		}
		return err
	}

	return atomicWrite(path, data)
}

// Marshal renders cfg as config-file YAML.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal config")
	}
	if err := validateYAML(data); err != nil {
		return nil, &InvalidConfigError{
			Message: err.Error(),
			Hint:    "This is a bug; please report it",
		}
	}
	return data, nil
}

func backupConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return os.WriteFile(path+".bak", data, 0o644)
}

// validateYAML decodes data back strictly so that a field renamed in the
// struct but not in its tags is caught before the file is replaced.
func validateYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg Config
	return dec.Decode(&cfg)
}

func atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write config")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed to replace config")
	}
	return nil
}

func checkWritePermission(path string) error {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	if err := checkDirectoryWritable(dir); err != nil {
		return &PermissionError{
			Path:    dir,
			Op:      "write",
			Fix:     permissionFix(dir),
			Details: "Cannot write to config directory",
		}
	}

	if _, err := os.Stat(path); err == nil {
		f, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err != nil {
			return &PermissionError{
				Path:    path,
				Op:      "write",
				Fix:     permissionFix(path),
				Details: "Config file is read-only",
			}
		}
		f.Close()
	}
	return nil
}

func checkDirectoryWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".write-test-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func permissionFix(path string) string {
	if runtime.GOOS == "windows" {
		return fmt.Sprintf("Right-click %s → Properties → Security → Grant 'Write' permission", path)
	}
	return fmt.Sprintf("Run: chmod u+rw %s", path)
}
