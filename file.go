package expconf

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

var (
	ErrInaccessiblePath        = errors.New("inaccessible path")
	ErrCannotCreateDirectories = errors.New("cannot create directories")
)

// FromYAML reads a YAML or JSON file (by extension; an extension-less path is
// read as YAML, mirroring ToYAML), parses it into a raw mapping, and
// materializes a *T from it. Read errors propagate with os.ErrNotExist
// intact; parse errors wrap ErrParse.
func FromYAML[T any](path string) (*T, error) {
	raw, err := readRawMapping(path)
	if err != nil {
		return nil, err
	}
	return FromMap[T](raw)
}

// FromYAMLData materializes a *T from in-memory YAML text.
func FromYAMLData[T any](data []byte) (*T, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return FromMap[T](raw)
}

// ToYAML dematerializes v and writes the resulting mapping to path as YAML,
// or as JSON when the extension is .json. The write is atomic: a temp file in
// the destination directory is renamed over the target.
func ToYAML(v any, path string) error {
	raw, err := ToMap(v)
	if err != nil {
		return err
	}
	return writeRawMapping(path, raw)
}

// ToYAMLData dematerializes v and renders the mapping as YAML text.
func ToYAMLData(v any) ([]byte, error) {
	raw, err := ToMap(v)
	if err != nil {
		return nil, err
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return data, nil
}

// EnsurePath ensures the directories for a file path exist and the path
// does not already exist as a directory.
func EnsurePath(p string) error {
	info, err := os.Stat(p)
	switch {
	case err == nil:
		if info.IsDir() {
			return ErrInaccessiblePath
		}
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return ErrInaccessiblePath
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return ErrCannotCreateDirectories
	}
	return nil
}

func readRawMapping(path string) (map[string]any, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrUnsupportedConfigFileType)
	}
	ext := filepath.Ext(path)
	if ext != "" && ext != ".yaml" && ext != ".yml" && ext != ".json" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedConfigFileType, ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var raw map[string]any
	switch ext {
	case ".json":
		raw, err = decodeJSONMapping(data)
	default:
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrParse, path, err)
	}
	return raw, nil
}

// decodeJSONMapping decodes JSON with UseNumber and then resolves every
// json.Number to int64 or float64, so that whole numbers stay integers
// instead of collapsing to float64 and tripping the structural type checks.
func decodeJSONMapping(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	for k, v := range raw {
		raw[k] = resolveNumbers(v)
	}
	return raw, nil
}

func resolveNumbers(v any) any {
	switch v := v.(type) {
	case json.Number:
		if n, err := strconv.ParseInt(v.String(), 10, 64); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case map[string]any:
		for k, item := range v {
			v[k] = resolveNumbers(item)
		}
	case []any:
		for i, item := range v {
			v[i] = resolveNumbers(item)
		}
	}
	return v
}

func writeRawMapping(path string, raw map[string]any) (retErr error) {
	// Guard against panics from encoders (e.g., yaml on unsupported kinds).
	defer func() {
		if r := recover(); r != nil {
			ext := filepath.Ext(path)
			retErr = fmt.Errorf("%w as %s: %v", ErrFormat, ext, r)
		}
	}()

	ext := filepath.Ext(path)
	if ext != "" && ext != ".yaml" && ext != ".yml" && ext != ".json" {
		return fmt.Errorf("%w: %s", ErrUnsupportedConfigFileType, ext)
	}
	var data []byte
	var err error
	switch ext {
	case ".json":
		data, err = json.MarshalIndent(raw, "", "  ")
	default:
		data, err = yaml.Marshal(raw)
	}
	if err != nil {
		return fmt.Errorf("%w as %s: %w", ErrFormat, ext, err)
	}
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "temp-config-*"+ext)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmpFile.Name())
	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("%w %s: %w", ErrWrite, path, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	return
}
