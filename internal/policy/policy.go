// Package policy is an optional deployment authorization gate. Deployments
// that want an allowlist (instead of attempt-then-fail against the upstream)
// supply a rego module; unconfigured deployments allow everything and let the
// upstream be the authority.
package policy

import (
	"context"
	"os"

	"github.com/open-policy-agent/opa/rego"
)

// Input is what the policy sees for one call. Credential material is
// deliberately absent.
type Input struct {
	TenantID   string `json:"tenant_id"`
	Method     string `json:"method"`
	PropertyID string `json:"property_id,omitempty"`
}

type Gate struct {
	query rego.PreparedEvalQuery
}

// Load compiles the rego module at path once; evaluation is per call.
// The module must define `data.gateway.allow`.
func Load(path string) (*Gate, error) {
	mod, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pq, err := rego.New(
		rego.Query("data.gateway.allow"),
		rego.Module("policy.rego", string(mod)),
	).PrepareForEval(context.Background())
	if err != nil {
		return nil, err
	}
	return &Gate{query: pq}, nil
}

// Allow evaluates the policy for one call. A missing or non-boolean result
// is a deny; policies must opt calls in explicitly.
func (g *Gate) Allow(ctx context.Context, in Input) (bool, error) {
	rs, err := g.query.Eval(ctx, rego.EvalInput(map[string]any{
		"tenant_id":   in.TenantID,
		"method":      in.Method,
		"property_id": in.PropertyID,
	}))
	if err != nil {
		return false, err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, _ := rs[0].Expressions[0].Value.(bool)
	return allowed, nil
}
