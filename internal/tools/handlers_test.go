package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"analyticsgw/internal/upstream"
	"analyticsgw/pkg/problems"
)

func TestAccountSummariesEndToEnd(t *testing.T) {
	factory := newFakeFactory(map[string]fixture{
		"a@tenants.example": {summaries: []upstream.AccountSummary{
			{Account: "A-1", Properties: []string{"P-1"}},
		}},
	})
	reg := testRegistry(t, testDeps(factory))

	res, err := reg.Dispatch(context.Background(), Call{
		Method: "accountSummaries",
		Params: map[string]any{
			"tenant_id":          "A",
			"tenant_credentials": encodeCreds(t, "a@tenants.example"),
		},
	})
	require.NoError(t, err)

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"account":"A-1","properties":["P-1"]}]`, string(raw))
}

func TestPropertyDetailsNormalizesID(t *testing.T) {
	factory := newFakeFactory(map[string]fixture{
		"a@tenants.example": {property: &upstream.Property{Name: "properties/123", DisplayName: "Site"}},
	})
	reg := testRegistry(t, testDeps(factory))

	res, err := reg.Dispatch(context.Background(), Call{
		Method: "propertyDetails",
		Params: map[string]any{
			"tenant_id":          "A",
			"tenant_credentials": encodeCreds(t, "a@tenants.example"),
			"property_id":        float64(123),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Site", res.(*upstream.Property).DisplayName)

	require.Len(t, factory.clients, 1)
	assert.Equal(t, "properties/123", factory.clients[0].requestedName)
}

func TestRunReportPreservesRowOrder(t *testing.T) {
	factory := newFakeFactory(map[string]fixture{
		"a@tenants.example": {report: &upstream.Report{
			DimensionHeaders: []string{"country"},
			MetricHeaders:    []upstream.MetricHeader{{Name: "activeUsers"}},
			Rows:             [][]string{{"US", "10"}, {"CA", "5"}},
			RowCount:         2,
		}},
	})
	reg := testRegistry(t, testDeps(factory))

	res, err := reg.Dispatch(context.Background(), Call{
		Method: "runReport",
		Params: map[string]any{
			"tenant_id":          "A",
			"tenant_credentials": encodeCreds(t, "a@tenants.example"),
			"property_id":        "264168163",
			"date_ranges":        []any{map[string]any{"start_date": "7daysAgo", "end_date": "today"}},
			"dimensions":         []any{"country"},
			"metrics":            []any{"activeUsers"},
			"limit":              float64(100),
		},
	})
	require.NoError(t, err)

	rep := res.(*upstream.Report)
	assert.Equal(t, [][]string{{"US", "10"}, {"CA", "5"}}, rep.Rows)
	assert.Equal(t, []string{"country"}, rep.DimensionHeaders)

	require.Len(t, factory.clients, 1)
	sent := factory.clients[0].lastReport
	assert.Equal(t, "properties/264168163", sent.Property)
	assert.Equal(t, int64(100), sent.Limit)
	require.Len(t, sent.DateRanges, 1)
}

func TestRunRealtimeReportHasNoDateRanges(t *testing.T) {
	factory := newFakeFactory(map[string]fixture{
		"a@tenants.example": {report: &upstream.Report{Rows: [][]string{{"US", "3"}}}},
	})
	reg := testRegistry(t, testDeps(factory))

	res, err := reg.Dispatch(context.Background(), Call{
		Method: "runRealtimeReport",
		Params: map[string]any{
			"tenant_id":          "A",
			"tenant_credentials": encodeCreds(t, "a@tenants.example"),
			"property_id":        "55",
			"dimensions":         []any{"country"},
			"metrics":            []any{"activeUsers"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"US", "3"}}, res.(*upstream.Report).Rows)

	require.Len(t, factory.clients, 1)
	assert.Empty(t, factory.clients[0].lastReport.DateRanges)
}

func TestConcurrentDispatchTenantIsolation(t *testing.T) {
	factory := newFakeFactory(map[string]fixture{
		"a@tenants.example": {summaries: []upstream.AccountSummary{{Account: "A-1", Properties: []string{"P-A"}}}},
		"b@tenants.example": {summaries: []upstream.AccountSummary{{Account: "B-1", Properties: []string{"P-B"}}}},
	})
	reg := testRegistry(t, testDeps(factory))

	credsA := encodeCreds(t, "a@tenants.example")
	credsB := encodeCreds(t, "b@tenants.example")

	const rounds = 50
	var wg sync.WaitGroup
	errs := make(chan error, rounds*2)
	for i := 0; i < rounds; i++ {
		for _, tc := range []struct{ tenant, creds, wantAccount string }{
			{"A", credsA, "A-1"},
			{"B", credsB, "B-1"},
		} {
			wg.Add(1)
			go func(tenant, creds, want string) {
				defer wg.Done()
				res, err := reg.Dispatch(context.Background(), Call{
					Method: "accountSummaries",
					Params: map[string]any{"tenant_id": tenant, "tenant_credentials": creds},
				})
				if err != nil {
					errs <- err
					return
				}
				got := res.([]upstream.AccountSummary)
				if len(got) != 1 || got[0].Account != want {
					errs <- fmt.Errorf("tenant %s saw %+v", tenant, got)
				}
			}(tc.tenant, tc.creds, tc.wantAccount)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("cross-tenant contamination: %v", err)
	}
}

func TestNothingSurvivesTheCall(t *testing.T) {
	factory := newFakeFactory(map[string]fixture{
		"a@tenants.example": {summaries: []upstream.AccountSummary{{Account: "A-1"}}},
	})
	reg := testRegistry(t, testDeps(factory))

	for i := 0; i < 3; i++ {
		_, err := reg.Dispatch(context.Background(), Call{
			Method: "accountSummaries",
			Params: map[string]any{"tenant_id": "A", "tenant_credentials": encodeCreds(t, "a@tenants.example")},
		})
		require.NoError(t, err)
	}

	require.Len(t, factory.clients, 3)
	for _, cl := range factory.clients {
		assert.True(t, cl.closed, "client must be closed when its call ends")
	}
	for _, c := range factory.creds {
		assert.Nil(t, c.JSON(), "credential material must be zeroed when its call ends")
	}
}

func TestCredentialFailuresPropagateUnchanged(t *testing.T) {
	factory := newFakeFactory(map[string]fixture{})
	reg := testRegistry(t, testDeps(factory))

	_, err := reg.Dispatch(context.Background(), Call{
		Method: "accountSummaries",
		Params: map[string]any{"tenant_id": "A", "tenant_credentials": "!!not-base64!!"},
	})
	require.Error(t, err)
	assert.Equal(t, problems.KindInvalidCredentialFormat, problems.KindOf(err))
	assert.Empty(t, factory.clients, "no client may be constructed from bad credentials")

	_, err = reg.Dispatch(context.Background(), Call{
		Method: "accountSummaries",
		Params: map[string]any{
			"tenant_id":          "A",
			"tenant_credentials": encodeCredsOfType(t, "authorized_user", "a@tenants.example"),
		},
	})
	require.Error(t, err)
	assert.Equal(t, problems.KindCredentialRejected, problems.KindOf(err))
}

func TestUpstreamFailureClassificationAndSanitization(t *testing.T) {
	secret := strings.Repeat("QUJDREVGR0hJSktMTU5PUFFSU1RVVldYWVo", 2)
	cases := []struct {
		name string
		err  error
		want problems.Kind
	}{
		{"permission denied", status.Error(codes.PermissionDenied, "caller lacks access, presented key "+secret), problems.KindAccessDenied},
		{"not found", status.Error(codes.NotFound, "property not visible"), problems.KindResourceNotFound},
		{"deadline", context.DeadlineExceeded, problems.KindUpstreamTimeout},
		{"unavailable", status.Error(codes.Unavailable, "upstream unreachable"), problems.KindUpstreamError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			factory := newFakeFactory(map[string]fixture{
				"a@tenants.example": {err: tc.err},
			})
			reg := testRegistry(t, testDeps(factory))
			_, err := reg.Dispatch(context.Background(), Call{
				Method: "accountSummaries",
				Params: map[string]any{"tenant_id": "A", "tenant_credentials": encodeCreds(t, "a@tenants.example")},
			})
			require.Error(t, err)
			assert.Equal(t, tc.want, problems.KindOf(err))
			assert.NotContains(t, err.Error(), secret)
		})
	}
}

func TestAuditOutcomeTracksFailureKind(t *testing.T) {
	// Outcome slugs are derived from the same taxonomy the caller sees; this
	// pins the mapping for the audit trail.
	factory := newFakeFactory(map[string]fixture{
		"a@tenants.example": {err: status.Error(codes.NotFound, "nope")},
	})
	reg := testRegistry(t, testDeps(factory))
	_, err := reg.Dispatch(context.Background(), Call{
		Method: "propertyDetails",
		Params: map[string]any{
			"tenant_id":          "A",
			"tenant_credentials": encodeCreds(t, "a@tenants.example"),
			"property_id":        "9",
		},
	})
	require.Error(t, err)
	assert.Equal(t, "resource_not_found", string(problems.KindOf(err)))
}
