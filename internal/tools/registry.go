// Package tools holds the tool table and the dispatcher. The registry is
// built once at process start and is read-only afterwards; dispatch shares no
// mutable state between calls, so concurrent calls cannot observe each other.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"

	"analyticsgw/pkg/problems"
)

// Call is one parsed inbound request.
type Call struct {
	Method string
	Params map[string]any
}

// Handler executes one validated tool call. Params have already passed the
// registered schema.
type Handler func(ctx context.Context, params map[string]any) (any, error)

// Registration is one tool table entry: name, param schema, handler.
type Registration struct {
	Name        string
	Description string
	Schema      string // JSON Schema document for the params object
	Handler     Handler

	compiled *jsonschema.Schema
}

type Registry struct {
	tools   map[string]*Registration
	names   []string
	timeout time.Duration
	log     *zap.SugaredLogger
}

// NewRegistry compiles every registration's schema and freezes the table.
func NewRegistry(log *zap.SugaredLogger, timeout time.Duration, regs []Registration) (*Registry, error) {
	r := &Registry{tools: make(map[string]*Registration, len(regs)), timeout: timeout, log: log}
	c := jsonschema.NewCompiler()
	for i := range regs {
		reg := regs[i]
		if _, dup := r.tools[reg.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", reg.Name)
		}
		var doc any
		if err := json.Unmarshal([]byte(reg.Schema), &doc); err != nil {
			return nil, fmt.Errorf("tool %q schema: %w", reg.Name, err)
		}
		url := reg.Name + ".schema.json"
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("tool %q schema: %w", reg.Name, err)
		}
		compiled, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("tool %q schema: %w", reg.Name, err)
		}
		reg.compiled = compiled
		r.tools[reg.Name] = &reg
		r.names = append(r.names, reg.Name)
	}
	return r, nil
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string { return append([]string(nil), r.names...) }

// Dispatch routes one call. Unknown method and schema failures never reach a
// handler; handler faults are mapped to the taxonomy and a panic becomes an
// internal error for this call only.
func (r *Registry) Dispatch(ctx context.Context, call Call) (result any, err error) {
	reg, ok := r.tools[call.Method]
	if !ok {
		return nil, problems.Newf(problems.KindMethodNotFound, "method not found: %s", call.Method)
	}
	params := call.Params
	if params == nil {
		params = map[string]any{}
	}
	if verr := reg.compiled.Validate(params); verr != nil {
		return nil, problems.Newf(problems.KindInvalidParams, "invalid params: %v", verr)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Errorw("tool panic", "method", call.Method, "panic", rec, "stack", string(debug.Stack()))
			result, err = nil, problems.New(problems.KindInternal, "internal error")
		}
	}()

	res, herr := reg.Handler(ctx, params)
	if herr != nil {
		var pe *problems.Error
		if !errors.As(herr, &pe) {
			// Untyped faults get full detail server-side and a generic
			// message toward the caller.
			r.log.Errorw("tool failure", "method", call.Method, "err", herr)
			return nil, problems.New(problems.KindInternal, "internal error")
		}
		return nil, pe
	}
	return res, nil
}
