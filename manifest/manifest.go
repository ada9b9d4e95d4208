// Package manifest loads YAML import manifests.
//
// A manifest names the host imports a guest is offered, binds each function
// import to a named handler, and carries the WASI and linker settings used by
// the cmd/run host:
//
//	heap_base: 1024
//	options:
//	  trap_unresolved: true
//	wasi:
//	  enabled: true
//	  args: [guest, --verbose]
//	imports:
//	  - namespace: env
//	    name: memory
//	    kind: memory
//	    min_pages: 1
//	    max_pages: 16
//	  - namespace: env
//	    name: ext_echo
//	    params: [i64]
//	    results: [i64]
//	    handler: echo
//
// Types are written by name (i32, i64, f32, f64) or by numeric tag (1..4).
package manifest

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/imports"
	"github.com/wippyai/wasm-host/linker"
	"github.com/wippyai/wasm-host/value"
	"github.com/wippyai/wasm-host/wasi"
)

// Import kinds.
const (
	KindFunc   = "func"
	KindMemory = "memory"
)

// Manifest is the decoded form of a manifest file.
type Manifest struct {
	Imports  []Import `yaml:"imports"`
	WASI     WASI     `yaml:"wasi"`
	HeapBase int64    `yaml:"heap_base"`
	Options  Options  `yaml:"options"`
}

// Options mirror the registry and linker switches.
type Options struct {
	RejectDuplicates bool `yaml:"reject_duplicates"`
	TrapUnresolved   bool `yaml:"trap_unresolved"`
}

// WASI configures the system-interface import set.
type WASI struct {
	Env         map[string]string `yaml:"env"`
	Preopens    map[string]string `yaml:"preopens"` // guest path -> host directory
	ProgramName string            `yaml:"program_name"`
	Args        []string          `yaml:"args"`
	Enabled     bool              `yaml:"enabled"`
}

// Import is one manifest entry.
type Import struct {
	MaxPages  *int64 `yaml:"max_pages"`
	Namespace string `yaml:"namespace"`
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"`
	Handler   string `yaml:"handler"`
	Params    Types  `yaml:"params"`
	Results   Types  `yaml:"results"`
	MinPages  int64  `yaml:"min_pages"`
	Shared    bool   `yaml:"shared"`
}

// Types is a list of value types accepting names or numeric tags.
type Types []value.ValueType

// UnmarshalYAML implements yaml.Unmarshaler.
func (ts *Types) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw []interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	out := make(Types, 0, len(raw))
	for _, r := range raw {
		t, err := typeOf(r)
		if err != nil {
			return err
		}
		out = append(out, t)
	}
	*ts = out
	return nil
}

func typeOf(r interface{}) (value.ValueType, error) {
	switch v := r.(type) {
	case string:
		return value.Parse(v)
	case int:
		if v < math.MinInt32 || v > math.MaxInt32 {
			return 0, errors.Overflow(errors.PhaseConfig, nil, v, "i32")
		}
		return value.FromTag(int32(v))
	default:
		return 0, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("value type %v (%T)", r, r))
	}
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, path)
	}
	return Parse(data)
}

// Parse decodes a manifest.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.UnmarshalStrict(data, &m); err != nil {
		if _, ok := err.(*errors.Error); ok {
			return nil, err
		}
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "decode manifest")
	}
	if _, err := narrow(m.HeapBase, "heap_base"); err != nil {
		return nil, err
	}
	return &m, nil
}

// HeapBaseAddr returns the heap base as a 32-bit address.
func (m *Manifest) HeapBaseAddr() uint32 {
	return uint32(m.HeapBase)
}

// HandlerFactory creates the callback for a function import.
type HandlerFactory func(imp Import) (imports.Callback, error)

// Handlers maps handler names to factories.
type Handlers map[string]HandlerFactory

// Declarations converts the manifest imports, in order, into import
// declarations. Every function import must name a known handler.
func (m *Manifest) Declarations(h Handlers) ([]imports.Declaration, error) {
	decls := make([]imports.Declaration, 0, len(m.Imports))
	for i, imp := range m.Imports {
		d, err := imp.declaration(h)
		if err != nil {
			if e, ok := err.(*errors.Error); ok && len(e.Path) == 0 {
				e.Path = []string{fmt.Sprintf("imports[%d]", i)}
			}
			return nil, err
		}
		decls = append(decls, d)
	}
	return decls, nil
}

func (imp Import) declaration(h Handlers) (imports.Declaration, error) {
	switch strings.ToLower(imp.Kind) {
	case "", KindFunc:
		factory, ok := h[imp.Handler]
		if !ok {
			return nil, errors.NotFound(errors.PhaseConfig, "handler", imp.Handler)
		}
		cb, err := factory(imp)
		if err != nil {
			return nil, err
		}
		return imports.Func{
			Namespace: imp.Namespace,
			Name:      imp.Name,
			Params:    imp.Params,
			Results:   imp.Results,
			Callback:  cb,
		}, nil
	case KindMemory:
		minPages, err := narrow(imp.MinPages, "min_pages")
		if err != nil {
			return nil, err
		}
		d := imports.Memory{
			Namespace: imp.Namespace,
			Name:      imp.Name,
			MinPages:  minPages,
			Shared:    imp.Shared,
		}
		if imp.MaxPages != nil {
			maxPages, err := narrow(*imp.MaxPages, "max_pages")
			if err != nil {
				return nil, err
			}
			d.MaxPages = &maxPages
		}
		return d, nil
	default:
		return nil, errors.Unsupported(errors.PhaseConfig, "import kind "+imp.Kind)
	}
}

// narrow converts a wire integer to 32 bits.
func narrow(n int64, field string) (uint32, error) {
	if n < 0 || n > math.MaxUint32 {
		return 0, errors.New(errors.PhaseConfig, errors.KindOther).
			Path(field).
			Value(n).
			Detail("does not fit u32").
			Build()
	}
	return uint32(n), nil
}

// WASIConfig returns the wasi.Config described by the manifest. Stdio is
// left for the caller.
func (m *Manifest) WASIConfig() wasi.Config {
	return wasi.Config{
		ProgramName: m.WASI.ProgramName,
		Args:        m.WASI.Args,
		Env:         m.WASI.Env,
		Preopens:    m.WASI.Preopens,
	}
}

// ImportOptions returns registry options with the manifest switches applied.
func (m *Manifest) ImportOptions() imports.Options {
	opts := imports.DefaultOptions()
	opts.RejectDuplicates = m.Options.RejectDuplicates
	return opts
}

// LinkerOptions returns linker options with the manifest switches applied.
func (m *Manifest) LinkerOptions() linker.Options {
	opts := linker.DefaultOptions()
	opts.TrapUnresolved = m.Options.TrapUnresolved
	return opts
}
