package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"go.uber.org/multierr"

	"github.com/wippyai/wasm-host/imports"
	"github.com/wippyai/wasm-host/linker"
	"github.com/wippyai/wasm-host/manifest"
	"github.com/wippyai/wasm-host/resolve"
	"github.com/wippyai/wasm-host/wasi"
)

type sessionConfig struct {
	metrics      *imports.Metrics
	wasmFile     string
	manifestFile string
	env          string
	argv         string
	preopens     string
	wasi         bool
}

// session is one guest linked against the manifest imports.
type session struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	table    *imports.Table
	wasi     *wasi.Imports
	instance *linker.Instance
}

func openSession(ctx context.Context, cfg sessionConfig) (_ *session, err error) {
	data, err := os.ReadFile(cfg.wasmFile)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	m := &manifest.Manifest{}
	if cfg.manifestFile != "" {
		if m, err = manifest.Load(cfg.manifestFile); err != nil {
			return nil, fmt.Errorf("manifest: %w", err)
		}
	}

	s := &session{runtime: wazero.NewRuntimeWithConfig(ctx, runtimeConfig())}
	defer func() {
		if err != nil {
			_ = s.Close(ctx)
		}
	}()

	s.compiled, err = s.runtime.CompileModule(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	decls, err := m.Declarations(builtinHandlers(m.HeapBaseAddr()))
	if err != nil {
		return nil, fmt.Errorf("imports: %w", err)
	}
	opts := m.ImportOptions()
	opts.Metrics = cfg.metrics
	s.table, err = imports.NewBuilder(s.runtime, opts).Build(ctx, decls)
	if err != nil {
		return nil, fmt.Errorf("imports: %w", err)
	}

	var r resolve.Resolver = s.table
	modCfg := wazero.NewModuleConfig()
	if cfg.wasi || m.WASI.Enabled {
		state, err := wasiConfig(m, cfg).Finalize()
		if err != nil {
			return nil, fmt.Errorf("wasi: %w", err)
		}
		s.wasi, err = state.ImportObject(ctx, s.runtime, s.compiled)
		if err != nil {
			return nil, fmt.Errorf("wasi: %w", err)
		}
		r = resolve.Chain(s.wasi, s.table)
		modCfg = state.ModuleConfig()
	}

	// _start is invoked through Call so the exit code reaches the caller.
	modCfg = modCfg.WithStartFunctions()

	s.instance, err = linker.New(s.runtime, m.LinkerOptions()).Instantiate(ctx, s.compiled, r, modCfg)
	if err != nil {
		return nil, fmt.Errorf("instantiate: %w", err)
	}
	return s, nil
}

// runtimeConfig enables threads so manifests can declare shared memories.
func runtimeConfig() wazero.RuntimeConfig {
	return wazero.NewRuntimeConfig().
		WithCoreFeatures(api.CoreFeaturesV2 | experimental.CoreFeaturesThreads)
}

// wasiConfig merges the manifest WASI section with command line flags.
// Flags win on conflicts.
func wasiConfig(m *manifest.Manifest, cfg sessionConfig) wasi.Config {
	c := m.WASIConfig()
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if c.ProgramName == "" {
		c.ProgramName = cfg.wasmFile
	}
	if cfg.argv != "" {
		c.Args = splitList(cfg.argv)
	}
	if cfg.env != "" {
		env := make(map[string]string, len(c.Env))
		for k, v := range c.Env {
			env[k] = v
		}
		for _, kv := range strings.Split(cfg.env, ",") {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) == 2 {
				env[parts[0]] = parts[1]
			}
		}
		c.Env = env
	}
	if cfg.preopens != "" {
		preops := make(map[string]string, len(c.Preopens))
		for k, v := range c.Preopens {
			preops[k] = v
		}
		for _, mapping := range strings.Split(cfg.preopens, ",") {
			parts := strings.SplitN(mapping, ":", 2)
			if len(parts) == 2 {
				preops[parts[0]] = parts[1]
			}
		}
		c.Preopens = preops
	}
	return c
}

func (s *session) Close(ctx context.Context) error {
	var err error
	if s.instance != nil {
		err = multierr.Append(err, s.instance.Close(ctx))
	}
	if s.wasi != nil {
		err = multierr.Append(err, s.wasi.Close(ctx))
	}
	if s.table != nil {
		err = multierr.Append(err, s.table.Close(ctx))
	}
	return multierr.Append(err, s.runtime.Close(ctx))
}
