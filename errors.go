package expconf

import (
	"errors"
	"fmt"
)

// Exported error categories returned by this package. These are used with wrapping
// so callers can detect error classes using errors.Is/As.
//   - ErrMissingField: a required field has no value in the raw mapping.
//   - ErrTypeMismatch: a raw value is structurally incompatible with its field.
//   - ErrNotStruct: the schema argument is not a struct (or pointer to one).
//   - ErrEnsureConfigDir: failure to create parent directories for a config file.
//   - ErrUnsupportedConfigFileType: file extension is neither .yaml/.yml nor .json.
//   - ErrParse: failure to parse config text into a raw mapping.
//   - ErrFormat: failure to render a raw mapping to bytes (e.g., unsupported kind).
//   - ErrWrite: failure to write the config file to disk.
var (
	ErrMissingField              = errors.New("missing required field")
	ErrTypeMismatch              = errors.New("type mismatch")
	ErrNotStruct                 = errors.New("schema must be a struct")
	ErrEnsureConfigDir           = errors.New("ensure config dir")
	ErrUnsupportedConfigFileType = errors.New("unsupported config file type")
	ErrParse                     = errors.New("parse config")
	ErrFormat                    = errors.New("format config")
	ErrWrite                     = errors.New("write to config file")
)

// MissingFieldError reports a required field (no default, non-nullable type)
// that has no corresponding key in the raw mapping. It matches ErrMissingField
// under errors.Is.
type MissingFieldError struct {
	Schema string // schema type name
	Field  string // mapping key of the field
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: required field %q has no value", e.Schema, e.Field)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }

// TypeMismatchError reports a raw value that is present but structurally
// incompatible with the declared field type, e.g. a scalar where a nested
// mapping was required. It matches ErrTypeMismatch under errors.Is.
type TypeMismatchError struct {
	Schema string
	Field  string
	Want   string // declared type
	Got    string // dynamic type of the raw value
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: field %q: cannot use %s as %s", e.Schema, e.Field, e.Got, e.Want)
}

func (e *TypeMismatchError) Is(target error) bool { return target == ErrTypeMismatch }
