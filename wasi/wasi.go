package wasi

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/atomic"

	"github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/resolve"
)

// Namespaces a guest may import WASI preview1 functions from.
const (
	SnapshotPreview1 = wasi_snapshot_preview1.ModuleName
	Unstable         = "wasi_unstable"
)

// Config describes the system interface handed to a guest.
type Config struct {
	Stdin       io.Reader
	Stdout      io.Writer
	Stderr      io.Writer
	Env         map[string]string
	Preopens    map[string]string // guest path -> host directory
	ProgramName string
	Args        []string
}

// State is a validated Config.
type State struct {
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	envKeys  []string
	env      map[string]string
	preopens [][2]string
	args     []string
}

// Finalize validates the configuration.
func (c Config) Finalize() (*State, error) {
	s := &State{
		stdin:  c.Stdin,
		stdout: c.Stdout,
		stderr: c.Stderr,
		env:    make(map[string]string, len(c.Env)),
		args:   append([]string{c.ProgramName}, c.Args...),
	}

	for _, arg := range s.args {
		if strings.IndexByte(arg, 0) >= 0 {
			return nil, invalid("argument %q contains NUL", arg)
		}
	}
	for k, v := range c.Env {
		if k == "" || strings.ContainsAny(k, "=\x00") || strings.IndexByte(v, 0) >= 0 {
			return nil, invalid("invalid environment variable %q", k)
		}
		s.env[k] = v
		s.envKeys = append(s.envKeys, k)
	}
	slices.Sort(s.envKeys)

	for guest, host := range c.Preopens {
		fi, err := os.Stat(host)
		if err != nil {
			return nil, errors.New(errors.PhaseWASI, errors.KindOther).
				Path(guest).
				Cause(err).
				Detail("preopen %s", host).
				Build()
		}
		if !fi.IsDir() {
			return nil, invalid("preopen %s is not a directory", host)
		}
		s.preopens = append(s.preopens, [2]string{host, guest})
	}
	slices.SortFunc(s.preopens, func(a, b [2]string) int { return strings.Compare(a[1], b[1]) })

	return s, nil
}

func invalid(format string, args ...any) error {
	return errors.New(errors.PhaseWASI, errors.KindOther).Detail(format, args...).Build()
}

// Args returns argv, starting with the program name.
func (s *State) Args() []string {
	return append([]string(nil), s.args...)
}

// ModuleConfig returns the configuration a guest must be instantiated with.
func (s *State) ModuleConfig() wazero.ModuleConfig {
	cfg := wazero.NewModuleConfig().
		WithArgs(s.args...).
		WithSysWalltime().
		WithSysNanotime().
		WithSysNanosleep().
		WithRandSource(rand.Reader)
	for _, k := range s.envKeys {
		cfg = cfg.WithEnv(k, s.env[k])
	}
	if s.stdin != nil {
		cfg = cfg.WithStdin(s.stdin)
	}
	if s.stdout != nil {
		cfg = cfg.WithStdout(s.stdout)
	}
	if s.stderr != nil {
		cfg = cfg.WithStderr(s.stderr)
	}
	if len(s.preopens) > 0 {
		fs := wazero.NewFSConfig()
		for _, p := range s.preopens {
			fs = fs.WithDirMount(p[0], p[1])
		}
		cfg = cfg.WithFSConfig(fs)
	}
	return cfg
}

var hostSeq atomic.Uint64

// ImportObject instantiates the WASI host module in rt and returns a resolver
// serving it under the namespace compiled imports from.
func (s *State) ImportObject(ctx context.Context, rt wazero.Runtime, compiled wazero.CompiledModule) (*Imports, error) {
	ns := Version(compiled)
	hidden := fmt.Sprintf("%s#wasi.%d", ns, hostSeq.Inc())

	builder := rt.NewHostModuleBuilder(hidden)
	wasi_snapshot_preview1.NewFunctionExporter().ExportFunctions(builder)
	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, errors.New(errors.PhaseWASI, errors.KindOther).
			Cause(err).
			Detail("instantiate wasi host module").
			Build()
	}
	return &Imports{namespace: ns, module: mod}, nil
}

// Version returns the WASI namespace compiled imports from, defaulting to
// SnapshotPreview1 when it imports neither.
func Version(compiled wazero.CompiledModule) string {
	if compiled == nil {
		return SnapshotPreview1
	}
	for _, def := range compiled.ImportedFunctions() {
		if mod, _, ok := def.Import(); ok {
			switch mod {
			case SnapshotPreview1:
				return SnapshotPreview1
			case Unstable:
				return Unstable
			}
		}
	}
	return SnapshotPreview1
}

// Imports is the WASI import set for one guest.
type Imports struct {
	module    api.Module
	namespace string
}

var _ resolve.Resolver = (*Imports)(nil)

// Namespace returns the namespace the imports are served under.
func (i *Imports) Namespace() string {
	return i.namespace
}

// Module returns the hidden host module.
func (i *Imports) Module() api.Module {
	return i.module
}

// Resolve implements resolve.Resolver.
func (i *Imports) Resolve(namespace, name string) (resolve.Export, bool) {
	if namespace != i.namespace {
		return nil, false
	}
	if _, ok := i.module.ExportedFunctionDefinitions()[name]; !ok {
		return nil, false
	}
	return resolve.ModuleFunc{Module: i.module, ExportName: name}, true
}

// Close releases the host module.
func (i *Imports) Close(ctx context.Context) error {
	return i.module.Close(ctx)
}
