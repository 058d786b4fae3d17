package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// LogLevels lists the accepted logging.level values.
var LogLevels = []string{"debug", "info", "warn", "error"}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Is lets errors.Is match ErrInvalidConfig against any non-empty collection.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig && len(e) > 0
}

// Fields returns the names of the invalid fields.
func (e ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(e))
	for _, err := range e {
		fields = append(fields, err.Field)
	}
	return fields
}

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// maxDelayMs bounds every timing value.
const maxDelayMs = 1000

// maxChannelName is the longest abstract socket name the kernel accepts,
// less the leading NUL.
const maxChannelName = 107

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateChannel(&c.Channel)...)
	errs = append(errs, validateDevice(&c.Device)...)
	errs = append(errs, validateTiming(&c.Timing)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateChannel(ch *ChannelConfig) ValidationErrors {
	var errs ValidationErrors

	switch {
	case ch.Name == "":
		errs = append(errs, *RequiredFieldError("channel.name"))
	case strings.HasPrefix(ch.Name, "@"):
		errs = append(errs, ValidationError{
			Field:   "channel.name",
			Message: "name must not include the leading '@'",
		})
	case len(ch.Name) > maxChannelName:
		errs = append(errs, ValidationError{
			Field:   "channel.name",
			Message: fmt.Sprintf("name longer than %d bytes", maxChannelName),
		})
	case strings.ContainsRune(ch.Name, 0):
		errs = append(errs, ValidationError{
			Field:   "channel.name",
			Message: "name must not contain NUL",
		})
	}

	return errs
}

func validateDevice(d *DeviceConfig) ValidationErrors {
	var errs ValidationErrors

	if d.Path == "" {
		errs = append(errs, *RequiredFieldError("device.path"))
	}

	if d.Name == "" {
		errs = append(errs, *RequiredFieldError("device.name"))
	} else if len(d.Name) > 79 {
		errs = append(errs, ValidationError{
			Field:   "device.name",
			Message: "name longer than 79 bytes",
		})
	}

	if d.Vendor < 0 || d.Vendor > 0xffff {
		errs = append(errs, *RangeError("device.vendor", 0, 0xffff))
	}
	if d.Product < 0 || d.Product > 0xffff {
		errs = append(errs, *RangeError("device.product", 0, 0xffff))
	}

	if d.SettleMs < 0 || d.SettleMs > 5000 {
		errs = append(errs, *RangeError("device.settle_ms", 0, 5000))
	}

	return errs
}

func validateTiming(t *TimingConfig) ValidationErrors {
	var errs ValidationErrors

	fields := []struct {
		name  string
		value int
	}{
		{"timing.shift_settle_ms", t.ShiftSettleMs},
		{"timing.key_hold_ms", t.KeyHoldMs},
		{"timing.release_settle_ms", t.ReleaseSettleMs},
		{"timing.modifier_settle_ms", t.ModifierSettleMs},
	}
	for _, f := range fields {
		if f.value < 0 || f.value > maxDelayMs {
			errs = append(errs, *RangeError(f.name, 0, maxDelayMs))
		}
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	if !slices.Contains(LogLevels, l.Level) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: %s)", l.Level, strings.Join(LogLevels, ", ")),
		})
	}

	switch l.Format {
	case "text", "json":
		// Valid formats
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}

	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}

	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
