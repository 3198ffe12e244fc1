package expconf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	modellib "github.com/ygrebnov/model"

	"github.com/expconf/expconf/streams"
)

const configFileName = "config.yml"

// Loader manages the lifecycle of a configuration object of type T.
//
// A Loader[T] performs the following steps exactly once (it is safe to call
// Load from multiple goroutines):
//  1. Construct a new *T using the factory set via WithDefaultFn (or a zero-value fallback).
//  2. If WithModel is set, bind a model.Model[T] to the same *T and call SetDefaults()
//     to populate zero values using `default` struct tags.
//  3. Resolve the configuration file path from WithPath or, with WithPersistence,
//     a standard user config directory.
//  4. If the file exists, parse it into a raw mapping, overlay it onto the
//     dematerialized defaults, and materialize the merged mapping back into the
//     same *T — so required-field, default-tag, and subconfig-hook semantics all
//     apply to file contents. If persistence is enabled and the file is missing,
//     it is created from the defaults.
//  5. If WithModel was set, validate the final object using model.Validate().
//
// Subsequent calls to Load() return the same pointer and metadata.
type Loader[T any] struct {
	mu          sync.RWMutex
	initOnce    sync.Once
	persist     bool
	dirName     string
	configPath  string
	cfg         *T
	defaultFn   func() *T
	streams     streams.IOStreams
	fileCreated bool
	initErr     error
	modelInit   ModelInit[T]
	model       *modellib.Model[T]
}

// Option configures a Loader at construction time. Options are composable and
// can be passed to New in any order.
type Option[T any] func(*Loader[T])

// New constructs a Loader[T] and applies all given options.
// If no WithDefaultFn is provided, New uses a zero-value factory that returns
// a new *T with all fields zeroed.
func New[T any](opts ...Option[T]) *Loader[T] {
	l := &Loader[T]{}
	for _, opt := range opts {
		opt(l)
	}

	if l.defaultFn == nil {
		// Must be a pointer to a struct for reflection logic
		l.defaultFn = func() *T { var t T; return &t }
	}

	return l
}

// WithPersistence enables reading/writing the config file under a directory
// named `dirName` inside the OS user config directory (e.g. XDG_CONFIG_HOME/<dirName>/config.yml).
// The loader will attempt to create the file with the dematerialized defaults
// when it does not exist. Panics if dirName is empty.
func WithPersistence[T any](dirName string) Option[T] {
	return func(l *Loader[T]) {
		if dirName == "" {
			panic("expconf: WithPersistence: dirName cannot be empty")
		}
		l.persist = true
		l.dirName = dirName
	}
}

// WithPath sets an explicit config file path, taking precedence over the
// persistence directory. Panics if path is empty.
func WithPath[T any](path string) Option[T] {
	return func(l *Loader[T]) {
		if path == "" {
			panic("expconf: WithPath: path cannot be empty")
		}
		l.configPath = path
	}
}

// WithDefaultFn registers a factory that returns a new *T. The factory is invoked
// once during Load() to construct the base configuration object before any file
// contents are applied. Panics if fn is nil.
func WithDefaultFn[T any](fn func() *T) Option[T] {
	return func(l *Loader[T]) {
		if fn == nil {
			panic("expconf: WithDefaultFn: fn cannot be nil")
		}
		l.defaultFn = fn
	}
}

// WithStreams wires user-facing message streams (e.g., for "created new config"/
// "loaded from" notifications and non-fatal warnings). Pass adapters from the
// companion streams package to route output to buffers, logs, or io.Discard.
func WithStreams[T any](s streams.IOStreams) Option[T] {
	return func(l *Loader[T]) {
		l.streams = s
	}
}

// ModelInit is a constructor hook that binds a model.Model[T] to the
// Loader-managed *T. It allows the Loader to call SetDefaults() before file
// contents are applied and Validate() after. Return the constructed
// model.Model[T] or an error.
type ModelInit[T any] func(*T) (*modellib.Model[T], error)

// WithModel enables integration with github.com/ygrebnov/model. The provided init
// function is called exactly once during the first Load() to build a model.Model[T]
// bound to the Loader's *T. The Loader will then:
//   - call SetDefaults() before applying file contents, and
//   - call Validate() after the final object is materialized.
//
// Panics if init is nil.
func WithModel[T any](init ModelInit[T]) Option[T] {
	return func(l *Loader[T]) {
		if init == nil {
			panic("expconf: WithModel: init cannot be nil")
		}
		l.modelInit = init
	}
}

// Load initializes and returns the final configuration pointer, the resolved file
// path (if any), whether the file was created on this run, and an error if
// initialization failed. Load is safe for concurrent use; initialization runs
// at most once.
func (l *Loader[T]) Load() (cfg *T, path string, fileCreated bool, err error) {
	l.initOnce.Do(func() {
		// 1) Construct default config instance
		l.cfg = l.defaultFn()

		// 2) Optionally construct model wrapper around config instance
		// to apply tag defaults before file operations.
		if l.modelInit != nil {
			mdl, err := l.modelInit(l.cfg)
			if err != nil {
				l.initErr = err
				return
			}
			l.model = mdl

			if l.model != nil {
				if err := l.model.SetDefaults(); err != nil {
					l.initErr = err
					return
				}
			}
		}

		// 3) Resolve config path. If this fails, abort initialization.
		if err := l.resolveConfigPath(); err != nil {
			l.initErr = err
			return
		}

		// 4) File operations. Read the raw mapping if the file exists;
		// in persistent mode, create it from defaults when missing.
		if l.configPath != "" {
			raw, e := readRawMapping(l.configPath)
			switch {
			case e != nil && !errors.Is(e, os.ErrNotExist):
				l.initErr = e
				return

			case e != nil && l.persist:
				if pe := EnsurePath(l.configPath); pe != nil {
					l.initErr = errors.Join(ErrEnsureConfigDir, pe)
					return
				}

				if we := ToYAML(l.cfg, l.configPath); we != nil {
					l.initErr = we
					return
				}
				l.fileCreated = true
				if l.streams != nil && l.streams.Out() != nil {
					fmt.Fprintf(l.streams.Out(), "expconf: created new config at %s\n", l.configPath)
				}

			case e != nil:
				// Missing file without persistence: the read error propagates
				// unchanged, with os.ErrNotExist intact.
				l.initErr = e
				return

			case e == nil:
				if me := l.applyMapping(raw); me != nil {
					l.initErr = me
					return
				}
				if l.persist && l.streams != nil && l.streams.Out() != nil {
					fmt.Fprintf(l.streams.Out(), "expconf: loaded from %s\n", l.configPath)
				}
			}
		}

		// 5) Optionally validate after file contents are applied.
		if l.model != nil {
			if err := l.model.Validate(); err != nil {
				l.initErr = err
				return
			}
		}
	})

	// After once: return cached state or error
	if l.initErr != nil {
		return nil, "", false, l.initErr
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg, l.configPath, l.fileCreated, nil
}

// applyMapping overlays file contents onto the dematerialized defaults and
// materializes the merged mapping back into the same *T, keeping any model
// binding attached to the original pointer.
func (l *Loader[T]) applyMapping(raw map[string]any) error {
	base, err := ToMap(l.cfg)
	if err != nil {
		return err
	}
	for k, v := range raw {
		base[k] = v
	}
	return Materialize(l.cfg, base)
}

// Materialize fills the struct pointed to by target from a raw mapping, with
// the same contract as FromMap. target must be a non-nil pointer to a struct.
// Construction happens in a fresh value that is copied onto target only on
// success, so a failed call leaves target unmodified.
func Materialize(target any, raw map[string]any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w, got %T", ErrNotStruct, target)
	}
	elem := rv.Elem()
	if elem.Kind() != reflect.Struct {
		return fmt.Errorf("%w, got %T", ErrNotStruct, target)
	}
	tmp := reflect.New(elem.Type()).Elem()
	if err := materializeStruct(tmp, raw); err != nil {
		return err
	}
	elem.Set(tmp)
	return nil
}

func (l *Loader[T]) resolveConfigPath() error {
	if l.configPath != "" {
		// Explicit path set via WithPath.
		return nil
	}
	if l.dirName == "" {
		// Non-persistent mode.
		return nil
	}
	// Prefer XDG_CONFIG_HOME explicitly when set, then fall back to os.UserConfigDir.
	userConfigDir := os.Getenv("XDG_CONFIG_HOME")
	if userConfigDir == "" {
		var err error
		userConfigDir, err = os.UserConfigDir()
		if err != nil {
			// Critical when persistent; otherwise emit a note to streams if available.
			if l.persist {
				return fmt.Errorf("cannot determine user config dir: %w", err)
			}
			if l.streams != nil && l.streams.ErrOut() != nil {
				fmt.Fprintf(
					l.streams.ErrOut(),
					"expconf: warning: cannot determine user config dir (%v); proceeding without reading a config file\n",
					err,
				)
			}
			// Non-persistent: continue without setting a path.
			return nil
		}
	}
	l.configPath = filepath.Join(userConfigDir, l.dirName, configFileName)
	return nil
}
