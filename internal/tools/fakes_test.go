package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"analyticsgw/internal/audit"
	"analyticsgw/internal/credentials"
	"analyticsgw/internal/upstream"
	"analyticsgw/pkg/logger"
	"analyticsgw/pkg/problems"
)

// fixture is the upstream data one fake identity can see.
type fixture struct {
	summaries []upstream.AccountSummary
	property  *upstream.Property
	report    *upstream.Report
	err       error
}

// fakeFactory hands out one fakeClient per call, keyed by the decoded
// client_email, and records every client and credential it saw so tests can
// assert nothing survives a call.
type fakeFactory struct {
	mu       sync.Mutex
	fixtures map[string]fixture

	clients []*fakeClient
	creds   []*credentials.Credentials
}

func newFakeFactory(fixtures map[string]fixture) *fakeFactory {
	return &fakeFactory{fixtures: fixtures}
}

func (f *fakeFactory) New(_ context.Context, _ string, creds *credentials.Credentials) (upstream.Client, error) {
	if t := creds.Field("type"); t != "service_account" {
		return nil, problems.Newf(problems.KindCredentialRejected, "credential type %q is not usable here", t)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	fx, ok := f.fixtures[creds.Field("client_email")]
	if !ok {
		return nil, errors.New("no fixture for this identity")
	}
	cl := &fakeClient{fixture: fx}
	f.clients = append(f.clients, cl)
	f.creds = append(f.creds, creds)
	return cl, nil
}

type fakeClient struct {
	fixture fixture

	mu            sync.Mutex
	closed        bool
	requestedName string
	lastReport    *upstream.ReportRequest
}

func (c *fakeClient) ListAccountSummaries(context.Context) ([]upstream.AccountSummary, error) {
	if c.fixture.err != nil {
		return nil, c.fixture.err
	}
	return c.fixture.summaries, nil
}

func (c *fakeClient) GetProperty(_ context.Context, name string) (*upstream.Property, error) {
	c.mu.Lock()
	c.requestedName = name
	c.mu.Unlock()
	if c.fixture.err != nil {
		return nil, c.fixture.err
	}
	return c.fixture.property, nil
}

func (c *fakeClient) RunReport(_ context.Context, req *upstream.ReportRequest) (*upstream.Report, error) {
	c.mu.Lock()
	c.lastReport = req
	c.mu.Unlock()
	if c.fixture.err != nil {
		return nil, c.fixture.err
	}
	return c.fixture.report, nil
}

func (c *fakeClient) RunRealtimeReport(ctx context.Context, req *upstream.ReportRequest) (*upstream.Report, error) {
	return c.RunReport(ctx, req)
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// encodeCreds mirrors the transport-safe scheme callers use.
func encodeCreds(t *testing.T, email string) string {
	t.Helper()
	raw, err := json.Marshal(map[string]string{"type": "service_account", "client_email": email})
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func encodeCredsOfType(t *testing.T, typ, email string) string {
	t.Helper()
	raw, err := json.Marshal(map[string]string{"type": typ, "client_email": email})
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func testDeps(f upstream.Factory) Deps {
	return Deps{
		Codec:   credentials.NewCodec([]string{"type", "client_email"}),
		Factory: f,
		Audit:   audit.NewRecorder(logger.Nop(), nil),
		Log:     logger.Nop(),
	}
}

func testRegistry(t *testing.T, d Deps) *Registry {
	t.Helper()
	reg, err := NewRegistry(logger.Nop(), 5*time.Second, Registrations(d))
	require.NoError(t, err)
	return reg
}
