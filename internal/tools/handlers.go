package tools

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"analyticsgw/internal/audit"
	"analyticsgw/internal/credentials"
	"analyticsgw/internal/policy"
	"analyticsgw/internal/ratelimit"
	"analyticsgw/internal/upstream"
	"analyticsgw/pkg/problems"
)

// Deps is everything a tool handler needs. Factory and Codec produce
// request-scoped values only; nothing here holds tenant state.
type Deps struct {
	Codec   *credentials.Codec
	Factory upstream.Factory
	Audit   *audit.Recorder
	Limiter *ratelimit.Limiter // nil = disabled
	Policy  *policy.Gate       // nil = allow all
	Log     *zap.SugaredLogger
}

// Registrations builds the gateway's tool table.
func Registrations(d Deps) []Registration {
	return []Registration{
		{
			Name:        "accountSummaries",
			Description: "List the accounts and properties visible to the tenant's credentials.",
			Schema:      accountSummariesSchema,
			Handler:     d.run("accountSummaries", d.accountSummaries),
		},
		{
			Name:        "propertyDetails",
			Description: "Describe one analytics property's configuration.",
			Schema:      propertyDetailsSchema,
			Handler:     d.run("propertyDetails", d.propertyDetails),
		},
		{
			Name:        "runReport",
			Description: "Run a report over one or more date ranges.",
			Schema:      runReportSchema,
			Handler:     d.run("runReport", d.runReport),
		},
		{
			Name:        "runRealtimeReport",
			Description: "Run a realtime report over the implicit now window.",
			Schema:      runRealtimeReportSchema,
			Handler:     d.run("runRealtimeReport", d.runRealtimeReport),
		},
	}
}

// toolFunc is the per-tool body; it receives a client bound to the call's
// credentials and the normalized property resource name ("" when the tool
// takes none).
type toolFunc func(ctx context.Context, cl upstream.Client, property string, p map[string]any) (any, error)

// run wraps a tool body with the shared per-call sequence: rate limit,
// policy, credential decode, client construction, upstream call, audit.
// Credentials and client are created and destroyed inside this one call on
// every exit path; nothing retains them.
func (d Deps) run(method string, fn toolFunc) Handler {
	return func(ctx context.Context, p map[string]any) (any, error) {
		start := time.Now()
		tenantID := stringParam(p, "tenant_id")
		property := ""
		outcome := "ok"
		defer func() {
			d.Audit.Record(ctx, audit.Event{
				TenantID:   tenantID,
				Method:     method,
				PropertyID: property,
				Outcome:    outcome,
				Duration:   time.Since(start),
			})
		}()
		fail := func(err error) (any, error) {
			outcome = string(problems.KindOf(err))
			return nil, err
		}

		if _, ok := p["property_id"]; ok {
			id, err := normalizePropertyID(p["property_id"])
			if err != nil {
				return fail(err)
			}
			property = id
		}
		if d.Limiter != nil {
			ok, err := d.Limiter.Allow(ctx, tenantID)
			if err != nil {
				// Limiter outage fails open; the upstream still enforces quotas.
				d.Log.Warnw("rate limiter unavailable", "err", err)
			} else if !ok {
				return fail(problems.New(problems.KindRateLimited, "tenant call quota exceeded"))
			}
		}
		if d.Policy != nil {
			allowed, err := d.Policy.Allow(ctx, policy.Input{TenantID: tenantID, Method: method, PropertyID: property})
			if err != nil {
				d.Log.Errorw("policy eval", "method", method, "err", err)
				return fail(problems.New(problems.KindInternal, "internal error"))
			}
			if !allowed {
				return fail(problems.New(problems.KindAccessDenied, "denied by deployment policy"))
			}
		}

		creds, err := d.Codec.Decode(stringParam(p, "tenant_credentials"))
		if err != nil {
			return fail(err)
		}
		defer creds.Close()

		cl, err := d.Factory.New(ctx, tenantID, creds)
		if err != nil {
			return fail(err)
		}
		defer cl.Close()

		res, err := fn(ctx, cl, property, p)
		if err != nil {
			var pe *problems.Error
			if !errors.As(err, &pe) {
				err = upstream.Classify(err)
			}
			return fail(err)
		}
		return res, nil
	}
}

func (d Deps) accountSummaries(ctx context.Context, cl upstream.Client, _ string, _ map[string]any) (any, error) {
	return cl.ListAccountSummaries(ctx)
}

func (d Deps) propertyDetails(ctx context.Context, cl upstream.Client, property string, _ map[string]any) (any, error) {
	return cl.GetProperty(ctx, property)
}

func (d Deps) runReport(ctx context.Context, cl upstream.Client, property string, p map[string]any) (any, error) {
	req, err := reportRequest(property, p, true)
	if err != nil {
		return nil, err
	}
	return cl.RunReport(ctx, req)
}

func (d Deps) runRealtimeReport(ctx context.Context, cl upstream.Client, property string, p map[string]any) (any, error) {
	req, err := reportRequest(property, p, false)
	if err != nil {
		return nil, err
	}
	return cl.RunRealtimeReport(ctx, req)
}

// reportRequest extracts the shared report params. Dimension and metric
// names are passed through as-is; the upstream is the authority on whether a
// name exists.
func reportRequest(property string, p map[string]any, withDates bool) (*upstream.ReportRequest, error) {
	req := &upstream.ReportRequest{
		Property:   property,
		Dimensions: stringSlice(p, "dimensions"),
		Metrics:    stringSlice(p, "metrics"),
	}
	if withDates {
		ranges, err := dateRangesParam(p)
		if err != nil {
			return nil, err
		}
		req.DateRanges = ranges
		offset, err := intParam(p, "offset")
		if err != nil {
			return nil, err
		}
		req.Offset = offset
	}
	limit, err := intParam(p, "limit")
	if err != nil {
		return nil, err
	}
	req.Limit = limit
	return req, nil
}
