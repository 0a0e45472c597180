package upstream

import (
	"context"
	"fmt"
	"time"

	admin "cloud.google.com/go/analytics/admin/apiv1beta"
	"cloud.google.com/go/analytics/admin/apiv1beta/adminpb"
	data "cloud.google.com/go/analytics/data/apiv1beta"
	"cloud.google.com/go/analytics/data/apiv1beta/datapb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"analyticsgw/internal/credentials"
	"analyticsgw/pkg/problems"
)

// Read-only scope; the gateway exposes read tools only.
const readOnlyScope = "https://www.googleapis.com/auth/analytics.readonly"

// GoogleFactory builds request-scoped Google Analytics clients. The factory
// itself carries only immutable configuration.
type GoogleFactory struct {
	userAgent string
}

func NewGoogleFactory(userAgent string) *GoogleFactory {
	return &GoogleFactory{userAgent: userAgent}
}

// New checks the credential shape and binds a client to it. Authorization is
// not checked here; the upstream is the authority and rejects bad credentials
// on the actual call.
func (f *GoogleFactory) New(ctx context.Context, tenantID string, creds *credentials.Credentials) (Client, error) {
	if t := creds.Field("type"); t != "service_account" {
		return nil, problems.Newf(problems.KindCredentialRejected,
			"credential type %q is not usable here; expected a service account identity", t)
	}
	return &googleClient{
		credsJSON: creds.JSON(),
		userAgent: fmt.Sprintf("%s tenant/%s", f.userAgent, tenantID),
	}, nil
}

// googleClient holds what one call needs to reach the upstream. The creds
// slice is owned by the originating call and is zeroed when that call ends,
// so the client must not be used past it.
type googleClient struct {
	credsJSON []byte
	userAgent string
}

func (c *googleClient) opts() []option.ClientOption {
	return []option.ClientOption{
		option.WithCredentialsJSON(c.credsJSON),
		option.WithScopes(readOnlyScope),
		option.WithUserAgent(c.userAgent),
	}
}

func (c *googleClient) Close() error { return nil }

func (c *googleClient) ListAccountSummaries(ctx context.Context) ([]AccountSummary, error) {
	cl, err := admin.NewAnalyticsAdminClient(ctx, c.opts()...)
	if err != nil {
		return nil, err
	}
	defer cl.Close()
	it := cl.ListAccountSummaries(ctx, &adminpb.ListAccountSummariesRequest{})
	out := []AccountSummary{}
	for {
		s, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		sum := AccountSummary{Account: s.GetAccount(), DisplayName: s.GetDisplayName()}
		for _, p := range s.GetPropertySummaries() {
			sum.Properties = append(sum.Properties, p.GetProperty())
		}
		out = append(out, sum)
	}
	return out, nil
}

func (c *googleClient) GetProperty(ctx context.Context, name string) (*Property, error) {
	cl, err := admin.NewAnalyticsAdminClient(ctx, c.opts()...)
	if err != nil {
		return nil, err
	}
	defer cl.Close()
	p, err := cl.GetProperty(ctx, &adminpb.GetPropertyRequest{Name: name})
	if err != nil {
		return nil, err
	}
	out := &Property{
		Name:         p.GetName(),
		DisplayName:  p.GetDisplayName(),
		Parent:       p.GetParent(),
		Account:      p.GetAccount(),
		TimeZone:     p.GetTimeZone(),
		CurrencyCode: p.GetCurrencyCode(),
	}
	if v := p.GetIndustryCategory(); v != adminpb.IndustryCategory_INDUSTRY_CATEGORY_UNSPECIFIED {
		out.IndustryCategory = v.String()
	}
	if v := p.GetServiceLevel(); v != adminpb.ServiceLevel_SERVICE_LEVEL_UNSPECIFIED {
		out.ServiceLevel = v.String()
	}
	if t := p.GetCreateTime(); t != nil {
		out.CreateTime = t.AsTime().Format(time.RFC3339)
	}
	if t := p.GetUpdateTime(); t != nil {
		out.UpdateTime = t.AsTime().Format(time.RFC3339)
	}
	return out, nil
}

func (c *googleClient) RunReport(ctx context.Context, req *ReportRequest) (*Report, error) {
	cl, err := data.NewBetaAnalyticsDataClient(ctx, c.opts()...)
	if err != nil {
		return nil, err
	}
	defer cl.Close()
	pbReq := &datapb.RunReportRequest{
		Property:   req.Property,
		Dimensions: dimensionsPB(req.Dimensions),
		Metrics:    metricsPB(req.Metrics),
		Limit:      req.Limit,
		Offset:     req.Offset,
	}
	for _, dr := range req.DateRanges {
		pbReq.DateRanges = append(pbReq.DateRanges, &datapb.DateRange{
			StartDate: dr.StartDate, EndDate: dr.EndDate, Name: dr.Name,
		})
	}
	resp, err := cl.RunReport(ctx, pbReq)
	if err != nil {
		return nil, err
	}
	return convertReport(resp.GetDimensionHeaders(), resp.GetMetricHeaders(), resp.GetRows(), resp.GetRowCount()), nil
}

func (c *googleClient) RunRealtimeReport(ctx context.Context, req *ReportRequest) (*Report, error) {
	cl, err := data.NewBetaAnalyticsDataClient(ctx, c.opts()...)
	if err != nil {
		return nil, err
	}
	defer cl.Close()
	resp, err := cl.RunRealtimeReport(ctx, &datapb.RunRealtimeReportRequest{
		Property:   req.Property,
		Dimensions: dimensionsPB(req.Dimensions),
		Metrics:    metricsPB(req.Metrics),
		Limit:      req.Limit,
	})
	if err != nil {
		return nil, err
	}
	return convertReport(resp.GetDimensionHeaders(), resp.GetMetricHeaders(), resp.GetRows(), resp.GetRowCount()), nil
}

func dimensionsPB(names []string) []*datapb.Dimension {
	out := make([]*datapb.Dimension, 0, len(names))
	for _, n := range names {
		out = append(out, &datapb.Dimension{Name: n})
	}
	return out
}

func metricsPB(names []string) []*datapb.Metric {
	out := make([]*datapb.Metric, 0, len(names))
	for _, n := range names {
		out = append(out, &datapb.Metric{Name: n})
	}
	return out
}

// convertReport flattens the tabular proto into plain rows, preserving the
// upstream's row and column order exactly.
func convertReport(dh []*datapb.DimensionHeader, mh []*datapb.MetricHeader, rows []*datapb.Row, rowCount int32) *Report {
	rep := &Report{
		DimensionHeaders: make([]string, 0, len(dh)),
		MetricHeaders:    make([]MetricHeader, 0, len(mh)),
		Rows:             make([][]string, 0, len(rows)),
		RowCount:         int64(rowCount),
	}
	for _, h := range dh {
		rep.DimensionHeaders = append(rep.DimensionHeaders, h.GetName())
	}
	for _, h := range mh {
		hdr := MetricHeader{Name: h.GetName()}
		if t := h.GetType(); t != datapb.MetricType_METRIC_TYPE_UNSPECIFIED {
			hdr.Type = t.String()
		}
		rep.MetricHeaders = append(rep.MetricHeaders, hdr)
	}
	for _, r := range rows {
		row := make([]string, 0, len(r.GetDimensionValues())+len(r.GetMetricValues()))
		for _, v := range r.GetDimensionValues() {
			row = append(row, v.GetValue())
		}
		for _, v := range r.GetMetricValues() {
			row = append(row, v.GetValue())
		}
		rep.Rows = append(rep.Rows, row)
	}
	return rep
}
