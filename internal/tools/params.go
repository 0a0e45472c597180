package tools

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"analyticsgw/internal/upstream"
	"analyticsgw/pkg/problems"
)

var (
	propertyIDRe = regexp.MustCompile(`^[0-9]+$`)
	absDateRe    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	relDateRe    = regexp.MustCompile(`^\d+daysAgo$`)
)

// normalizePropertyID accepts a bare numeric id (string or JSON number) or a
// full "properties/N" resource name and returns the resource name.
func normalizePropertyID(v any) (string, error) {
	var s string
	switch t := v.(type) {
	case string:
		s = strings.TrimSpace(t)
	case float64:
		if t < 0 || t != math.Trunc(t) {
			return "", problems.New(problems.KindInvalidParams, "property_id must be a whole number or a properties/N resource name")
		}
		s = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return "", problems.New(problems.KindInvalidParams, "property_id must be a number or string")
	}
	s = strings.TrimPrefix(s, "properties/")
	if !propertyIDRe.MatchString(s) {
		return "", problems.New(problems.KindInvalidParams, "property_id must be a numeric id, optionally prefixed with properties/")
	}
	return "properties/" + s, nil
}

// validDateMarker reports whether a date range endpoint is an absolute date
// or one of the supported relative keywords.
func validDateMarker(s string) bool {
	return s == "today" || s == "yesterday" || absDateRe.MatchString(s) || relDateRe.MatchString(s)
}

func stringParam(p map[string]any, key string) string {
	s, _ := p[key].(string)
	return s
}

// stringSlice extracts a []string param. The schema has already checked the
// element type, so the assertions here only guard against misuse by handlers.
func stringSlice(p map[string]any, key string) []string {
	raw, _ := p[key].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// intParam extracts an optional non-negative integer param.
func intParam(p map[string]any, key string) (int64, error) {
	raw, ok := p[key]
	if !ok {
		return 0, nil
	}
	f, ok := raw.(float64)
	if !ok || f < 0 || f != math.Trunc(f) {
		return 0, problems.Newf(problems.KindInvalidParams, "%s must be a non-negative integer", key)
	}
	return int64(f), nil
}

// dateRangesParam validates the report window markers. Start and end accept
// YYYY-MM-DD, "today", "yesterday", or "NdaysAgo"; the upstream resolves the
// relative keywords.
func dateRangesParam(p map[string]any) ([]upstream.DateRange, error) {
	raw, _ := p["date_ranges"].([]any)
	if len(raw) == 0 {
		return nil, problems.New(problems.KindInvalidParams, "date_ranges must contain at least one range")
	}
	out := make([]upstream.DateRange, 0, len(raw))
	for i, v := range raw {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, problems.Newf(problems.KindInvalidParams, "date_ranges[%d] must be an object", i)
		}
		dr := upstream.DateRange{
			StartDate: stringParam(obj, "start_date"),
			EndDate:   stringParam(obj, "end_date"),
			Name:      stringParam(obj, "name"),
		}
		if !validDateMarker(dr.StartDate) {
			return nil, problems.Newf(problems.KindInvalidParams,
				"date_ranges[%d].start_date must be YYYY-MM-DD, today, yesterday, or NdaysAgo", i)
		}
		if !validDateMarker(dr.EndDate) {
			return nil, problems.Newf(problems.KindInvalidParams,
				"date_ranges[%d].end_date must be YYYY-MM-DD, today, yesterday, or NdaysAgo", i)
		}
		out = append(out, dr)
	}
	return out, nil
}
