package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analyticsgw/pkg/problems"
)

func TestNormalizePropertyID(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"bare numeric string", "264168163", "properties/264168163"},
		{"resource name", "properties/264168163", "properties/264168163"},
		{"json number", float64(42), "properties/42"},
		{"padded string", "  99  ", "properties/99"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := normalizePropertyID(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizePropertyIDRejects(t *testing.T) {
	for _, in := range []any{"", "abc", "properties/", "properties/abc", float64(-1), float64(1.5), true, nil} {
		_, err := normalizePropertyID(in)
		require.Error(t, err, "input %v", in)
		assert.Equal(t, problems.KindInvalidParams, problems.KindOf(err))
	}
}

func TestValidDateMarker(t *testing.T) {
	for _, s := range []string{"2024-01-31", "today", "yesterday", "7daysAgo", "30daysAgo"} {
		assert.True(t, validDateMarker(s), s)
	}
	for _, s := range []string{"", "last week", "2024-1-3", "daysAgo", "sevendaysAgo", "TODAY"} {
		assert.False(t, validDateMarker(s), s)
	}
}

func TestDateRangesParam(t *testing.T) {
	got, err := dateRangesParam(map[string]any{
		"date_ranges": []any{
			map[string]any{"start_date": "7daysAgo", "end_date": "today", "name": "week"},
			map[string]any{"start_date": "2024-01-01", "end_date": "2024-01-31"},
		},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "week", got[0].Name)
	assert.Equal(t, "2024-01-01", got[1].StartDate)
}

func TestDateRangesParamRejects(t *testing.T) {
	cases := []map[string]any{
		{},
		{"date_ranges": []any{}},
		{"date_ranges": []any{map[string]any{"start_date": "today"}}},
		{"date_ranges": []any{map[string]any{"start_date": "whenever", "end_date": "today"}}},
		{"date_ranges": []any{map[string]any{"start_date": "today", "end_date": "2024/01/01"}}},
	}
	for _, p := range cases {
		_, err := dateRangesParam(p)
		require.Error(t, err)
		assert.Equal(t, problems.KindInvalidParams, problems.KindOf(err))
	}
}

func TestIntParam(t *testing.T) {
	v, err := intParam(map[string]any{"limit": float64(250)}, "limit")
	require.NoError(t, err)
	assert.Equal(t, int64(250), v)

	v, err = intParam(map[string]any{}, "limit")
	require.NoError(t, err)
	assert.Zero(t, v)

	for _, bad := range []any{float64(-1), float64(0.5), "10"} {
		_, err := intParam(map[string]any{"limit": bad}, "limit")
		require.Error(t, err, "value %v", bad)
	}
}
