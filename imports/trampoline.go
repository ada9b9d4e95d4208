package imports

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/value"
)

// trampoline adapts a Func to wazero's stack calling convention. Failures are
// raised as a panic carrying *errors.Error; wazero recovers it and returns it,
// wrapped, from the guest's Call.
func (b *Builder) trampoline(f Func, scope *batch) api.GoModuleFunc {
	ns, name := f.Namespace, f.Name
	params, results := f.Params, f.Results
	callback := f.Callback
	metrics := b.opts.Metrics
	log := Logger()

	return func(ctx context.Context, mod api.Module, stack []uint64) {
		start := time.Now()

		args, err := value.Pack(params, value.FromStack(params, stack))
		if err != nil {
			metrics.observe(ns, name, outcomeMarshal, time.Since(start))
			panic(withPath(err, ns, name))
		}

		if mem := callMemory(scope.memoryFor(ns), mod); mem != nil {
			ctx = WithMemory(ctx, mem)
		}

		var out []value.Boxed
		err = errors.Guard(errors.PhaseHost, []string{ns, name}, func() error {
			var cerr error
			out, cerr = callback(ctx, args)
			if cerr != nil {
				return errors.HostFailure(ns, name, cerr)
			}
			return nil
		})
		if err != nil {
			outcome := outcomeError
			if isPanic(err) {
				outcome = outcomePanic
			}
			metrics.observe(ns, name, outcome, time.Since(start))
			log.Debug("host call failed",
				zap.String("namespace", ns),
				zap.String("name", name),
				zap.Error(err))
			panic(err)
		}

		vals, err := value.Unpack(results, out)
		if err != nil {
			metrics.observe(ns, name, outcomeMarshal, time.Since(start))
			panic(withPath(err, ns, name))
		}
		value.ToStack(vals, stack)
		metrics.observe(ns, name, outcomeOK, time.Since(start))
	}
}

func isPanic(err error) bool {
	var e *errors.Error
	return stderrors.As(err, &e) && e.Kind == errors.KindHostPanic
}

// withPath prefixes the import key to a marshaling error's path.
func withPath(err error, ns, name string) error {
	var e *errors.Error
	if stderrors.As(err, &e) {
		e.Path = append([]string{ns, name}, e.Path...)
	}
	return err
}
