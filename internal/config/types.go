// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// SafeModeAuto asks the detector (marker files, system properties).
	SafeModeAuto SafeModeSetting = "auto"
	// SafeModeOn forces safe mode: every module is purged at startup.
	SafeModeOn SafeModeSetting = "on"
	// SafeModeOff never treats the device as being in safe mode.
	SafeModeOff SafeModeSetting = "off"

	// Log levels and formats are defined locally to avoid coupling config
	// to internal/logging; the CLI converts at the boundary.

	// LogLevelDebug enables per-event traces.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the default level.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn hides routine lifecycle messages.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError shows failures only.
	LogLevelError LogLevel = "error"

	// LogFormatText is colored human-readable output.
	LogFormatText LogFormat = "text"
	// LogFormatJSON is one JSON object per record.
	LogFormatJSON LogFormat = "json"
	// LogFormatLogfmt is key=value records.
	LogFormatLogfmt LogFormat = "logfmt"

	defaultModuleDir  = "/data/adb/kpm"
	defaultModuleExt  = "kpm"
	defaultHelperPath = "/data/adb/ksu/bin/kpmmgr"
)

var (
	// ErrInvalidSafeModeSetting is returned when a SafeModeSetting value is not recognized.
	ErrInvalidSafeModeSetting = errors.New("invalid safe mode setting")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat is returned when a LogFormat value is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format")
	// ErrInvalidPath is returned when a required path is empty or whitespace-only.
	ErrInvalidPath = errors.New("invalid path")
	// ErrInvalidModuleExt is returned when the module extension is unusable.
	ErrInvalidModuleExt = errors.New("invalid module extension")
	// ErrInvalidTimeout is returned when a helper timeout cannot be parsed.
	ErrInvalidTimeout = errors.New("invalid timeout")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// SafeModeSetting selects how safe mode is decided at startup.
	SafeModeSetting string

	// LogLevel is the minimum level of records written.
	LogLevel string

	// LogFormat selects the log record encoding.
	LogFormat string

	// InvalidValueError is returned when an enumerated setting holds an
	// unknown value. Err is the sentinel for the setting's type.
	InvalidValueError struct {
		Field string
		Value string
		Valid []string
		Err   error
	}

	// InvalidPathError is returned when a path setting is empty or
	// whitespace-only. It wraps ErrInvalidPath.
	InvalidPathError struct {
		Field string
		Value string
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the kpmd configuration.
	Config struct {
		// ModuleDir is the directory holding module files.
		ModuleDir string `json:"module_dir" mapstructure:"module_dir" toml:"module_dir"`
		// ModuleExt is the recognized module file extension, without the dot.
		ModuleExt string `json:"module_ext" mapstructure:"module_ext" toml:"module_ext"`
		// Helper configures the kpmmgr helper binary.
		Helper HelperConfig `json:"helper" mapstructure:"helper" toml:"helper"`
		// BulkLoadOnStart loads every module file present before watching.
		BulkLoadOnStart bool `json:"bulk_load_on_start" mapstructure:"bulk_load_on_start" toml:"bulk_load_on_start"`
		// SafeMode configures safe-mode detection.
		SafeMode SafeModeConfig `json:"safe_mode" mapstructure:"safe_mode" toml:"safe_mode"`
		// Watch configures the directory watcher.
		Watch WatchConfig `json:"watch" mapstructure:"watch" toml:"watch"`
		// Log configures log output.
		Log LogConfig `json:"log" mapstructure:"log" toml:"log"`
	}

	// HelperConfig configures the helper binary.
	HelperConfig struct {
		Path string `json:"path" mapstructure:"path" toml:"path"`
		// Timeout is a Go duration bounding each helper call. Empty or zero
		// means no bound.
		Timeout string `json:"timeout" mapstructure:"timeout" toml:"timeout"`
	}

	// SafeModeConfig configures safe-mode detection.
	SafeModeConfig struct {
		Mode SafeModeSetting `json:"mode" mapstructure:"mode" toml:"mode"`
		// Markers are files whose presence means safe mode (auto mode only).
		Markers []string `json:"markers" mapstructure:"markers" toml:"markers"`
		// Properties are system properties that mean safe mode when set to
		// "1" or "true" (auto mode only).
		Properties []string `json:"properties" mapstructure:"properties" toml:"properties"`
	}

	// WatchConfig configures the directory watcher.
	WatchConfig struct {
		// Ignore holds doublestar patterns, relative to the module directory,
		// for entries the watcher never reacts to.
		Ignore []string `json:"ignore" mapstructure:"ignore" toml:"ignore"`
	}

	// LogConfig configures log output.
	LogConfig struct {
		Level  LogLevel  `json:"level" mapstructure:"level" toml:"level"`
		Format LogFormat `json:"format" mapstructure:"format" toml:"format"`
	}
)

// Error implements the error interface for InvalidValueError.
func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%s: invalid value %q (valid: %s)", e.Field, e.Value, strings.Join(e.Valid, ", "))
}

// Unwrap returns the sentinel for the setting's type.
func (e *InvalidValueError) Unwrap() error { return e.Err }

// Error implements the error interface for InvalidPathError.
func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("%s: invalid path %q: must be non-empty", e.Field, e.Value)
}

// Unwrap returns ErrInvalidPath for errors.Is() compatibility.
func (e *InvalidPathError) Unwrap() error { return ErrInvalidPath }

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	if len(e.FieldErrors) == 1 {
		return "invalid config: " + e.FieldErrors[0].Error()
	}
	return fmt.Sprintf("invalid config: %d field errors: %v", len(e.FieldErrors), errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig and the field errors for errors.Is/As.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// String returns the string representation of the SafeModeSetting.
func (s SafeModeSetting) String() string { return string(s) }

// IsValid returns whether the SafeModeSetting is one of the defined settings,
// and a list of validation errors if it is not.
func (s SafeModeSetting) IsValid() (bool, []error) {
	switch s {
	case SafeModeAuto, SafeModeOn, SafeModeOff:
		return true, nil
	default:
		return false, []error{&InvalidValueError{
			Field: "safe_mode.mode", Value: string(s),
			Valid: []string{"auto", "on", "off"}, Err: ErrInvalidSafeModeSetting,
		}}
	}
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidValueError{
			Field: "log.level", Value: string(l),
			Valid: []string{"debug", "info", "warn", "error"}, Err: ErrInvalidLogLevel,
		}}
	}
}

// String returns the string representation of the LogFormat.
func (f LogFormat) String() string { return string(f) }

// IsValid returns whether the LogFormat is one of the defined formats.
func (f LogFormat) IsValid() (bool, []error) {
	switch f {
	case LogFormatText, LogFormatJSON, LogFormatLogfmt:
		return true, nil
	default:
		return false, []error{&InvalidValueError{
			Field: "log.format", Value: string(f),
			Valid: []string{"text", "json", "logfmt"}, Err: ErrInvalidLogFormat,
		}}
	}
}

// TimeoutDuration parses Timeout. Empty means zero (no bound).
func (c HelperConfig) TimeoutDuration() (time.Duration, error) {
	if strings.TrimSpace(c.Timeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("%w: helper.timeout %q: %w", ErrInvalidTimeout, c.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: helper.timeout %q is negative", ErrInvalidTimeout, c.Timeout)
	}
	return d, nil
}

// IsValid returns whether the HelperConfig has a usable path and timeout.
func (c HelperConfig) IsValid() (bool, []error) {
	var errs []error
	if strings.TrimSpace(c.Path) == "" {
		errs = append(errs, &InvalidPathError{Field: "helper.path", Value: c.Path})
	}
	if _, err := c.TimeoutDuration(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return false, errs
	}
	return true, nil
}

// IsValid returns whether the Config has valid fields. It delegates to the
// IsValid methods of its typed fields and collects every failure into one
// *InvalidConfigError.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if strings.TrimSpace(c.ModuleDir) == "" {
		errs = append(errs, &InvalidPathError{Field: "module_dir", Value: c.ModuleDir})
	}
	ext := strings.TrimPrefix(c.ModuleExt, ".")
	if ext == "" || strings.ContainsAny(ext, `/\.`) {
		errs = append(errs, fmt.Errorf("%w: module_ext %q", ErrInvalidModuleExt, c.ModuleExt))
	}
	if valid, fieldErrs := c.Helper.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.SafeMode.Mode.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Log.Level.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Log.Format.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ModuleDir: defaultModuleDir,
		ModuleExt: defaultModuleExt,
		Helper: HelperConfig{
			Path:    defaultHelperPath,
			Timeout: "",
		},
		BulkLoadOnStart: false,
		SafeMode: SafeModeConfig{
			Mode:       SafeModeAuto,
			Markers:    []string{},
			Properties: []string{"persist.sys.safemode", "ro.sys.safemode"},
		},
		Watch: WatchConfig{
			Ignore: []string{},
		},
		Log: LogConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
	}
}
