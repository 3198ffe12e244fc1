package expconf

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFromYAML(t *testing.T) {
	td := t.TempDir()

	write := func(t *testing.T, name, contents string) string {
		t.Helper()
		p := filepath.Join(td, name)
		if err := os.WriteFile(p, []byte(contents), 0o600); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
		return p
	}

	// Prepare files for scenarios
	yamlOKPath := write(t, "good.yaml", "num_layer: 3\nhidden_size: 128\ndropout: 0.2\n")
	ymlOKPath := write(t, "good.yml", "num_layer: 1\n")
	yamlBadPath := write(t, "bad.yaml", "num_layer: [unclosed\n") // invalid YAML
	jsonOKPath := write(t, "good.json", `{"num_layer":3,"hidden_size":64,"dropout":0.5}`)
	jsonBadPath := write(t, "bad.json", `{"num_layer":,}`) // invalid JSON
	txtPath := write(t, "notes.txt", "just text")          // unsupported ext
	sparsePath := write(t, "sparse.yaml", "hidden_size: 8\n")

	nonexistentYAML := filepath.Join(td, "missing.yaml") // doesn't exist
	noExtPath := write(t, "config", "num_layer: 2\n")    // no extension -> YAML

	tests := []struct {
		name  string
		path  string
		want  *modelConfig
		errIs error // use errors.Is
	}{
		{
			name:  "empty path => unsupported",
			path:  "",
			errIs: ErrUnsupportedConfigFileType,
		},
		{
			name:  "unsupported extension .txt",
			path:  txtPath,
			errIs: ErrUnsupportedConfigFileType,
		},
		{
			name: "no extension reads as YAML, mirroring ToYAML",
			path: noExtPath,
			want: &modelConfig{NumLayer: 2, HiddenSize: 256, Dropout: 0.1},
		},
		{
			name:  "nonexistent file wraps os.ErrNotExist",
			path:  nonexistentYAML,
			errIs: os.ErrNotExist,
		},
		{
			name: "YAML success (.yaml)",
			path: yamlOKPath,
			want: &modelConfig{NumLayer: 3, HiddenSize: 128, Dropout: 0.2},
		},
		{
			name: "YAML success (.yml), defaults fill the rest",
			path: ymlOKPath,
			want: &modelConfig{NumLayer: 1, HiddenSize: 256, Dropout: 0.1},
		},
		{
			name:  "YAML parse error",
			path:  yamlBadPath,
			errIs: ErrParse,
		},
		{
			name: "JSON success, whole numbers stay integers",
			path: jsonOKPath,
			want: &modelConfig{NumLayer: 3, HiddenSize: 64, Dropout: 0.5},
		},
		{
			name:  "JSON parse error",
			path:  jsonBadPath,
			errIs: ErrParse,
		},
		{
			name:  "required field absent in file",
			path:  sparsePath,
			errIs: ErrMissingField,
		},
	}

	for _, tt := range tests {
		tt := tt // capture
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromYAML[modelConfig](tt.path)

			if tt.errIs != nil {
				if !errors.Is(err, tt.errIs) {
					t.Fatalf("expected errors.Is(err, %v) to be true, got err=%v", tt.errIs, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFromYAMLData(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		got, err := FromYAMLData[trainConfig]([]byte("batch_size: 32\nlearning_rate: 0.001\nvalidation_config: null\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.BatchSize != 32 || got.LearningRate != 0.001 {
			t.Fatalf("unexpected config: %+v", got)
		}
		if got.Validation != nil {
			t.Fatalf("explicit null must stay nil, got %+v", got.Validation)
		}
	})

	t.Run("parse error", func(t *testing.T) {
		_, err := FromYAMLData[trainConfig]([]byte("batch_size: [unclosed"))
		if !errors.Is(err, ErrParse) {
			t.Fatalf("expected ErrParse, got %v", err)
		}
	})
}

func TestToYAML(t *testing.T) {
	td := t.TempDir()

	tests := []struct {
		name      string
		path      func() string // build per-test path
		cfg       any
		wantErrIs error
		verify    func(t *testing.T, p string)
	}{
		{
			name: "success: yaml extension",
			path: func() string { return filepath.Join(td, "ok.yaml") },
			cfg:  &modelConfig{NumLayer: 3, HiddenSize: 128, Dropout: 0.2},
			verify: func(t *testing.T, p string) {
				b, err := os.ReadFile(p)
				if err != nil {
					t.Fatalf("read back: %v", err)
				}
				s := string(b)
				if !strings.Contains(s, "num_layer: 3") || !strings.Contains(s, "hidden_size: 128") {
					t.Fatalf("yaml content not as expected: %q", s)
				}
			},
		},
		{
			name: "success: json extension",
			path: func() string { return filepath.Join(td, "ok.json") },
			cfg:  &modelConfig{NumLayer: 5, HiddenSize: 64, Dropout: 0.5},
			verify: func(t *testing.T, p string) {
				b, err := os.ReadFile(p)
				if err != nil {
					t.Fatalf("read back: %v", err)
				}
				if got := string(b); !strings.Contains(got, `"num_layer": 5`) {
					t.Fatalf("json content not as expected: %q", got)
				}
			},
		},
		{
			name: "success: no extension -> yaml by default",
			path: func() string { return filepath.Join(td, "config") },
			cfg:  &modelConfig{NumLayer: 2, HiddenSize: 16, Dropout: 0.1},
			verify: func(t *testing.T, p string) {
				b, err := os.ReadFile(p)
				if err != nil {
					t.Fatalf("read back: %v", err)
				}
				if s := string(b); !strings.Contains(s, "num_layer: 2") {
					t.Fatalf("yaml content not as expected: %q", s)
				}
				// The extension-less file must be readable again.
				got, err := FromYAML[modelConfig](p)
				if err != nil {
					t.Fatalf("read back through FromYAML: %v", err)
				}
				if got.NumLayer != 2 || got.HiddenSize != 16 {
					t.Fatalf("round trip mismatch: %+v", got)
				}
			},
		},
		{
			name: "nil nullable field is written as explicit null",
			path: func() string { return filepath.Join(td, "nulls.yaml") },
			cfg:  &trainConfig{BatchSize: 8, LearningRate: 0.1},
			verify: func(t *testing.T, p string) {
				b, err := os.ReadFile(p)
				if err != nil {
					t.Fatalf("read back: %v", err)
				}
				if s := string(b); !strings.Contains(s, "validation_config: null") {
					t.Fatalf("expected explicit null in output: %q", s)
				}
			},
		},
		{
			name:      "unsupported extension",
			path:      func() string { return filepath.Join(td, "bad.txt") },
			cfg:       &modelConfig{NumLayer: 1},
			wantErrIs: ErrUnsupportedConfigFileType,
		},
		{
			name: "unrepresentable field",
			path: func() string { return filepath.Join(td, "cb.yaml") },
			cfg: &struct {
				F func() `yaml:"f"`
			}{F: func() {}},
			wantErrIs: ErrFormat,
		},
	}

	for _, tt := range tests {
		tt := tt // capture
		t.Run(tt.name, func(t *testing.T) {
			p := tt.path()
			err := ToYAML(tt.cfg, p)

			if tt.wantErrIs != nil {
				if !errors.Is(err, tt.wantErrIs) {
					t.Fatalf("expected errors.Is(err, %v) to be true, got err=%v", tt.wantErrIs, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.verify != nil {
				tt.verify(t, p)
			}
		})
	}
}

func TestYAMLFileRoundTrip(t *testing.T) {
	td := t.TempDir()
	p := filepath.Join(td, "exp.yaml")

	exp, err := FromMap[experimentConfig](validExperimentMapping())
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if err := ToYAML(exp, p); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := FromYAML[experimentConfig](p)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Fatalf("file round trip not stable (-want +got):\n%s", diff)
	}
}

func TestToYAMLData(t *testing.T) {
	data, err := ToYAMLData(&modelConfig{NumLayer: 3, HiddenSize: 128, Dropout: 0.2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := FromYAMLData[modelConfig](data)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got.NumLayer != 3 || got.HiddenSize != 128 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestEnsurePath(t *testing.T) {
	td := t.TempDir()

	t.Run("creates missing directories", func(t *testing.T) {
		p := filepath.Join(td, "a", "b", "config.yml")
		if err := EnsurePath(p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(filepath.Dir(p)); err != nil {
			t.Fatalf("directories not created: %v", err)
		}
	})

	t.Run("existing file is fine", func(t *testing.T) {
		p := filepath.Join(td, "exists.yml")
		if err := os.WriteFile(p, []byte("x: 1\n"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := EnsurePath(p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("path is a directory", func(t *testing.T) {
		if err := EnsurePath(td); !errors.Is(err, ErrInaccessiblePath) {
			t.Fatalf("expected ErrInaccessiblePath, got %v", err)
		}
	})
}
