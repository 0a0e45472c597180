// Package upstream defines the gateway's view of the analytics API: a
// request-scoped client interface, plain result types, and error
// classification. The real implementation talks to Google Analytics; tests
// substitute fakes.
package upstream

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"analyticsgw/internal/credentials"
	"analyticsgw/pkg/problems"
)

// AccountSummary is one account with the properties visible to the caller's
// credentials, flattened to resource names.
type AccountSummary struct {
	Account     string   `json:"account"`
	DisplayName string   `json:"displayName,omitempty"`
	Properties  []string `json:"properties"`
}

// Property describes one analytics property's configuration.
type Property struct {
	Name             string `json:"name"`
	DisplayName      string `json:"displayName,omitempty"`
	Parent           string `json:"parent,omitempty"`
	Account          string `json:"account,omitempty"`
	TimeZone         string `json:"timeZone,omitempty"`
	CurrencyCode     string `json:"currencyCode,omitempty"`
	IndustryCategory string `json:"industryCategory,omitempty"`
	ServiceLevel     string `json:"serviceLevel,omitempty"`
	CreateTime       string `json:"createTime,omitempty"`
	UpdateTime       string `json:"updateTime,omitempty"`
}

type DateRange struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Name      string `json:"name,omitempty"`
}

// ReportRequest carries the validated report parameters. DateRanges is empty
// for realtime reports (implicit "now" window).
type ReportRequest struct {
	Property   string
	DateRanges []DateRange
	Dimensions []string
	Metrics    []string
	Limit      int64
	Offset     int64
}

type MetricHeader struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Report is the row-oriented result. Each row is the dimension values
// followed by the metric values; row and column order are exactly as the
// upstream returned them.
type Report struct {
	DimensionHeaders []string       `json:"dimensionHeaders"`
	MetricHeaders    []MetricHeader `json:"metricHeaders"`
	Rows             [][]string     `json:"rows"`
	RowCount         int64          `json:"rowCount,omitempty"`
}

// Client is a request-scoped handle bound to one tenant's credentials. It is
// used for exactly one operation and Closed before the handler returns; it is
// never pooled or shared.
type Client interface {
	ListAccountSummaries(ctx context.Context) ([]AccountSummary, error)
	GetProperty(ctx context.Context, name string) (*Property, error)
	RunReport(ctx context.Context, req *ReportRequest) (*Report, error)
	RunRealtimeReport(ctx context.Context, req *ReportRequest) (*Report, error)
	Close() error
}

// Factory constructs a Client from decoded credentials. Construction performs
// no I/O; connections are established lazily by the SDK on first use.
type Factory interface {
	New(ctx context.Context, tenantID string, creds *credentials.Credentials) (Client, error)
}

// Classify maps an upstream failure into the error taxonomy, sanitizing the
// message so credential fragments from auth errors cannot reach the caller.
func Classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return problems.New(problems.KindUpstreamTimeout, "upstream call exceeded the per-call deadline")
	}
	if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
		msg := problems.Sanitize(s.Message())
		switch s.Code() {
		case codes.PermissionDenied, codes.Unauthenticated:
			return problems.New(problems.KindAccessDenied, msg)
		case codes.NotFound:
			return problems.New(problems.KindResourceNotFound, msg)
		case codes.DeadlineExceeded:
			return problems.New(problems.KindUpstreamTimeout, msg)
		default:
			return problems.New(problems.KindUpstreamError, msg)
		}
	}
	return problems.New(problems.KindUpstreamError, problems.Sanitize(err.Error()))
}
