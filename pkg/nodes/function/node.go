package function

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/protocol"
)

const runFuncName = "Run"

const defaultTimeoutSeconds = 10

// allowedSymbols is the interpreter's import allow-list: pure computation
// packages only. os, os/exec, net and the rest of the stdlib are not
// exposed to user-supplied source.
var allowedSymbols = restrictSymbols(map[string]bool{
	"encoding/base64/base64": true,
	"encoding/json/json":     true,
	"errors/errors":          true,
	"fmt/fmt":                true,
	"math/math":              true,
	"regexp/regexp":          true,
	"sort/sort":              true,
	"strconv/strconv":        true,
	"strings/strings":        true,
	"time/time":              true,
	"unicode/unicode":        true,
	"unicode/utf8/utf8":      true,
})

func restrictSymbols(allowed map[string]bool) interp.Exports {
	exports := make(interp.Exports, len(allowed))

	for path, symbols := range stdlib.Symbols {
		if allowed[path] {
			exports[path] = symbols
		}
	}

	return exports
}

type Node struct{}

// Execute interprets the configured source and calls its Run function
// with a context snapshot. The returned map becomes the context patch.
func (n *Node) Execute(ctx context.Context, input protocol.Input) (*models.Outcome, error) {
	source, ok := input.Node.Data["source"].(string)
	if !ok || source == "" {
		return models.Failed("missing required field 'source'"), nil
	}

	timeout := defaultTimeoutSeconds
	if value, ok := input.Node.Data["timeout_seconds"].(float64); ok && value > 0 {
		timeout = int(value)
	}

	evalCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	i := interp.New(interp.Options{})
	if err := i.Use(allowedSymbols); err != nil {
		return nil, fmt.Errorf("load interpreter symbols: %w", err)
	}

	if _, err := i.EvalWithContext(evalCtx, source); err != nil {
		return models.Failed(fmt.Sprintf("interpret function source: %v", err)), nil
	}

	fnValue, err := i.Eval(runFuncName)
	if err != nil {
		return models.Failed(fmt.Sprintf("source must define %s(map[string]any) (map[string]any, error): %v", runFuncName, err)), nil
	}

	patch, err := callRun(evalCtx, fnValue, input.Context.Snapshot())
	if err != nil {
		return models.Failed(fmt.Sprintf("function failed: %v", err)), nil
	}

	return models.Completed(map[string]any{"keys_written": len(patch)}, patch), nil
}

func callRun(ctx context.Context, fn reflect.Value, snapshot map[string]any) (map[string]any, error) {
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", runFuncName)
	}

	type result struct {
		patch map[string]any
		err   error
	}

	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("function panicked: %v", r)}
			}
		}()

		results := fn.Call([]reflect.Value{reflect.ValueOf(snapshot)})
		if len(results) != 2 {
			done <- result{err: fmt.Errorf("%s must return (map[string]any, error)", runFuncName)}

			return
		}

		if !results[1].IsNil() {
			if e, ok := results[1].Interface().(error); ok {
				done <- result{err: e}

				return
			}

			done <- result{err: fmt.Errorf("%s returned a non-error second value", runFuncName)}

			return
		}

		patch, ok := results[0].Interface().(map[string]any)
		if !ok {
			done <- result{err: fmt.Errorf("%s must return map[string]any", runFuncName)}

			return
		}

		done <- result{patch: patch}
	}()

	select {
	case r := <-done:
		return r.patch, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("function timed out: %w", ctx.Err())
	}
}
