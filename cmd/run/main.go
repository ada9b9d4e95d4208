package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-host/imports"
	"github.com/wippyai/wasm-host/linker"
	"github.com/wippyai/wasm-host/value"
)

func main() {
	var (
		wasmFile     = flag.String("wasm", "", "Path to core wasm module")
		manifestFile = flag.String("manifest", "", "YAML import manifest")
		enableWASI   = flag.Bool("wasi", false, "Provide WASI preview1 imports")
		funcName     = flag.String("func", "", "Function to call (optional)")
		argList      = flag.String("args", "", "Function arguments (comma-separated)")
		envVars      = flag.String("env", "", "WASI environment variables (KEY=VAL,KEY2=VAL2)")
		cliArgs      = flag.String("argv", "", "WASI arguments (comma-separated)")
		preopens     = flag.String("preopens", "", "Preopened directories (/guest:/host,/guest2:/host2)")
		list         = flag.Bool("list", false, "List exported functions and exit")
		interactive  = flag.Bool("i", false, "Interactive mode with TUI")
		logLevel     = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		logFile      = flag.String("log-file", "", "Also write JSON logs to this file, rotated")
		metricsAddr  = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	)
	flag.Parse()

	if *wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: run -wasm <file.wasm> [-manifest imports.yaml] [-wasi] [-func name] [-args 1,2]")
		fmt.Fprintln(os.Stderr, "       run -wasm <file.wasm> -list")
		fmt.Fprintln(os.Stderr, "       run -wasm <file.wasm> -i  (interactive mode)")
		os.Exit(1)
	}

	log, err := newLogger(*logLevel, *logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	imports.SetLogger(log.Named("imports"))
	linker.SetLogger(log.Named("linker"))

	cfg := sessionConfig{
		wasmFile:     *wasmFile,
		manifestFile: *manifestFile,
		wasi:         *enableWASI,
		env:          *envVars,
		argv:         *cliArgs,
		preopens:     *preopens,
	}

	if *metricsAddr != "" {
		metrics, err := serveMetrics(*metricsAddr, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg.metrics = metrics
	}

	if *interactive {
		if err := runInteractive(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	code, err := run(cfg, *funcName, *argList, *list)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	_ = log.Sync()
	os.Exit(code)
}

func serveMetrics(addr string, log *zap.Logger) (*imports.Metrics, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	metrics, err := imports.NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))
	return metrics, nil
}

// run returns the guest's exit code when it calls proc_exit.
func run(cfg sessionConfig, funcName, argList string, listOnly bool) (int, error) {
	ctx := context.Background()

	s, err := openSession(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer s.Close(ctx)

	fmt.Printf("Module: %s\n", cfg.wasmFile)
	fmt.Printf("Imports: %d\n", len(s.compiled.ImportedFunctions())+len(s.compiled.ImportedMemories()))
	fmt.Printf("Namespaces: %s\n", strings.Join(s.instance.Namespaces(), ", "))

	funcs := s.instance.Functions()
	fmt.Printf("\nExported functions:\n")
	for _, f := range funcs {
		fmt.Printf("  %s%s\n", f.Name, value.Signature(f.Params, f.Results))
	}

	if listOnly {
		return 0, nil
	}

	// If no function specified, try common entry points
	if funcName == "" {
		funcName = entryPoint(funcs)
		if funcName == "" {
			fmt.Printf("\nNo function specified and no common entry point found.\n")
			fmt.Printf("Use -func to specify a function to call.\n")
			return 0, nil
		}
	}

	f, ok := findFunc(funcs, funcName)
	if !ok {
		return 0, fmt.Errorf("function %q not exported", funcName)
	}
	args, err := parseArgs(f, splitList(argList))
	if err != nil {
		return 0, err
	}

	fmt.Printf("\nCalling %s(%s)...\n", funcName, formatValues(args))
	results, err := s.instance.Call(ctx, funcName, args...)
	if err != nil {
		var exit *sys.ExitError
		if stderrors.As(err, &exit) {
			fmt.Printf("Exited with code %d\n", exit.ExitCode())
			return int(exit.ExitCode()), nil
		}
		return 0, fmt.Errorf("call %s: %w", funcName, err)
	}

	fmt.Printf("Result: %s\n", formatValues(results))
	return 0, nil
}

func entryPoint(funcs []linker.Function) string {
	for _, name := range []string{"_start", "run", "main"} {
		if _, ok := findFunc(funcs, name); ok {
			return name
		}
	}
	if len(funcs) == 1 {
		return funcs[0].Name
	}
	return ""
}

func findFunc(funcs []linker.Function, name string) (linker.Function, bool) {
	for _, f := range funcs {
		if f.Name == name {
			return f, true
		}
	}
	return linker.Function{}, false
}

func parseArgs(f linker.Function, raw []string) ([]value.Value, error) {
	if len(raw) != len(f.Params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", f.Name, len(f.Params), len(raw))
	}
	args := make([]value.Value, len(raw))
	for i, s := range raw {
		v, err := value.ParseValue(f.Params[i], s)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = v
	}
	return args, nil
}

func formatValues(vs []value.Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
