package core

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRoutes() []Route {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []Route{
		{ID: "a", Name: "Warmup", Grade: "V1", SetterName: "Ana", CreatedAt: base},
		{ID: "b", Name: "Big Dyno", Grade: "V6", SetterName: "bruno", Style: []Style{StyleDynamic}, CreatedAt: base.Add(time.Hour)},
		{ID: "c", Name: "crimp line", Grade: "V4", SetterName: "Ana", Style: []Style{StyleSlab, StyleNoMatch}, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "d", Name: "Dyno Two", Grade: "V9", Style: []Style{StyleDynamic, StyleNoMatch}, CreatedAt: base.Add(3 * time.Hour)},
	}
}

func ids(routes []Route) []string {
	out := make([]string, 0, len(routes))
	for _, r := range routes {
		out = append(out, r.ID)
	}
	return out
}

func TestApply_DefaultNewestFirst(t *testing.T) {
	got := ListQuery{}.Apply(sampleRoutes())
	assert.Equal(t, []string{"d", "c", "b", "a"}, ids(got))
}

func TestApply_Filters(t *testing.T) {
	tests := []struct {
		name  string
		query ListQuery
		want  []string
	}{
		{"grade range", ListQuery{MinGrade: "V4", MaxGrade: "V6"}, []string{"c", "b"}},
		{"style all of", ListQuery{Styles: []Style{StyleDynamic, StyleNoMatch}}, []string{"d"}},
		{"setter case-insensitive", ListQuery{Setter: "ana"}, []string{"c", "a"}},
		{"name search", ListQuery{Search: "dyno"}, []string{"d", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(tt.query.Apply(sampleRoutes())))
		})
	}
}

func TestApply_Sorts(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(ListQuery{Sort: SortOldest}.Apply(sampleRoutes())))
	assert.Equal(t, []string{"a", "c", "b", "d"}, ids(ListQuery{Sort: SortGrade}.Apply(sampleRoutes())))
	assert.Equal(t, []string{"d", "b", "c", "a"}, ids(ListQuery{Sort: SortGradeDesc}.Apply(sampleRoutes())))
	assert.Equal(t, []string{"b", "c", "d", "a"}, ids(ListQuery{Sort: SortName}.Apply(sampleRoutes())))
}

func TestApply_Paging(t *testing.T) {
	q := ListQuery{Sort: SortOldest, Offset: 1, Limit: 2}
	assert.Equal(t, []string{"b", "c"}, ids(q.Apply(sampleRoutes())))

	q = ListQuery{Offset: 10}
	assert.Empty(t, q.Apply(sampleRoutes()))
}

func TestParseListQuery(t *testing.T) {
	v := url.Values{}
	v.Set("minGrade", "v2")
	v.Set("maxGrade", "V8")
	v.Add("style", "dynamic,no match")
	v.Set("setter", " Ana ")
	v.Set("q", "dyno")
	v.Set("sort", "-grade")
	v.Set("limit", "1000")
	v.Set("offset", "3")

	q, err := ParseListQuery(v)
	require.NoError(t, err)

	assert.Equal(t, Grade("V2"), q.MinGrade)
	assert.Equal(t, Grade("V8"), q.MaxGrade)
	assert.Equal(t, []Style{StyleDynamic, StyleNoMatch}, q.Styles)
	assert.Equal(t, "Ana", q.Setter)
	assert.Equal(t, "dyno", q.Search)
	assert.Equal(t, SortGradeDesc, q.Sort)
	assert.Equal(t, MaxListLimit, q.Limit)
	assert.Equal(t, 3, q.Offset)
}

func TestParseListQuery_Invalid(t *testing.T) {
	v := url.Values{}
	v.Set("minGrade", "V99")
	v.Set("sort", "random")
	v.Set("limit", "-1")

	_, err := ParseListQuery(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "minGrade")
	assert.Contains(t, err.Error(), "sort")
	assert.Contains(t, err.Error(), "limit")
}

func TestListQuery_ValuesRoundTrip(t *testing.T) {
	q := ListQuery{MinGrade: "V3", Styles: []Style{StyleSlab}, Setter: "Ana", Sort: SortName, Limit: 5}
	parsed, err := ParseListQuery(q.Values())
	require.NoError(t, err)
	assert.Equal(t, q, parsed)
}
