package config

import "fmt"

// PermissionError is returned when the config file or its directory cannot
// be read or written.
type PermissionError struct {
	Path    string
	Op      string // "read" or "write"
	Fix     string // suggested command
	Details string
}

func (e *PermissionError) Error() string {
	msg := fmt.Sprintf("permission denied (cannot %s config): %s\n", e.Op, e.Path)
	if e.Details != "" {
		msg += e.Details + "\n"
	}
	msg += "💡 Fix: " + e.Fix
	return msg
}

// ConfigNotFoundError is returned when an explicitly requested config file
// does not exist. A missing default config is not an error.
type ConfigNotFoundError struct {
	Path string
	Hint string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("config file not found: %s\n\n💡 %s", e.Path, e.Hint)
}

// InvalidConfigError reports a config file that cannot be parsed or holds an
// out-of-range value.
type InvalidConfigError struct {
	Path    string
	Key     string
	Message string
	Hint    string
}

func (e *InvalidConfigError) Error() string {
	where := e.Path
	if where == "" {
		where = "(defaults/environment)"
	}
	msg := fmt.Sprintf("invalid config: %s\n", where)
	if e.Key != "" {
		msg += e.Key + ": "
	}
	if e.Message != "" {
		msg += e.Message + "\n"
	}
	if e.Hint != "" {
		msg += "💡 " + e.Hint
	}
	return msg
}
