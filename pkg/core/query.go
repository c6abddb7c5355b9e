// pkg/core/query.go
package core

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// MaxListLimit caps the page size of a listing.
const MaxListLimit = 500

// SortOrder selects how a listing is ordered.
type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortOldest    SortOrder = "oldest"
	SortGrade     SortOrder = "grade"
	SortGradeDesc SortOrder = "-grade"
	SortName      SortOrder = "name"
)

// ListQuery filters and orders a route listing. The zero value lists every
// route, newest first.
type ListQuery struct {
	MinGrade Grade
	MaxGrade Grade
	Styles   []Style
	Setter   string
	Search   string
	Sort     SortOrder
	Limit    int
	Offset   int
}

// ParseListQuery reads a ListQuery from URL query parameters.
func ParseListQuery(v url.Values) (ListQuery, error) {
	var q ListQuery
	var verr ValidationError

	if s := v.Get("minGrade"); s != "" {
		g, ok := ParseGrade(s)
		if !ok {
			verr.add("minGrade", fmt.Sprintf("%q is not a grade", s))
		}
		q.MinGrade = g
	}
	if s := v.Get("maxGrade"); s != "" {
		g, ok := ParseGrade(s)
		if !ok {
			verr.add("maxGrade", fmt.Sprintf("%q is not a grade", s))
		}
		q.MaxGrade = g
	}
	for _, raw := range v["style"] {
		for _, token := range strings.Split(raw, ",") {
			if strings.TrimSpace(token) == "" {
				continue
			}
			st, ok := ParseStyle(token)
			if !ok {
				verr.add("style", fmt.Sprintf("unknown style %q", token))
				continue
			}
			q.Styles = append(q.Styles, st)
		}
	}
	q.Setter = strings.TrimSpace(v.Get("setter"))
	q.Search = strings.TrimSpace(v.Get("q"))

	if s := v.Get("sort"); s != "" {
		q.Sort = SortOrder(s)
		if !q.Sort.Valid() {
			verr.add("sort", fmt.Sprintf("unknown sort %q", s))
		}
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			verr.add("limit", "must be a non-negative integer")
		}
		q.Limit = n
	}
	if s := v.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			verr.add("offset", "must be a non-negative integer")
		}
		q.Offset = n
	}

	if len(verr.Fields) > 0 {
		return ListQuery{}, &verr
	}
	if q.Limit > MaxListLimit {
		q.Limit = MaxListLimit
	}
	return q, nil
}

// Values encodes the query as URL parameters, the inverse of ParseListQuery.
func (q ListQuery) Values() url.Values {
	v := url.Values{}
	if q.MinGrade != "" {
		v.Set("minGrade", string(q.MinGrade))
	}
	if q.MaxGrade != "" {
		v.Set("maxGrade", string(q.MaxGrade))
	}
	for _, s := range q.Styles {
		v.Add("style", string(s))
	}
	if q.Setter != "" {
		v.Set("setter", q.Setter)
	}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	if q.Sort != "" {
		v.Set("sort", string(q.Sort))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}

// Valid reports whether o is a known sort order. The empty order is valid.
func (o SortOrder) Valid() bool {
	switch o {
	case "", SortNewest, SortOldest, SortGrade, SortGradeDesc, SortName:
		return true
	}
	return false
}

// Match reports whether a route passes every filter of the query.
func (q ListQuery) Match(r Route) bool {
	rank := r.Grade.Rank()
	if q.MinGrade != "" && rank < q.MinGrade.Rank() {
		return false
	}
	if q.MaxGrade != "" && rank > q.MaxGrade.Rank() {
		return false
	}
	for _, s := range q.Styles {
		if !r.HasStyle(s) {
			return false
		}
	}
	if q.Setter != "" && !strings.EqualFold(q.Setter, r.SetterName) {
		return false
	}
	if q.Search != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(q.Search)) {
		return false
	}
	return true
}

// Apply filters, sorts and pages routes in memory.
func (q ListQuery) Apply(routes []Route) []Route {
	out := make([]Route, 0, len(routes))
	for _, r := range routes {
		if q.Match(r) {
			out = append(out, r)
		}
	}
	q.SortRoutes(out)
	return q.Page(out)
}

// SortRoutes orders routes in place. Ties fall back to creation time.
func (q ListQuery) SortRoutes(routes []Route) {
	sort.SliceStable(routes, func(i, j int) bool {
		a, b := routes[i], routes[j]
		switch q.Sort {
		case SortOldest:
			return a.CreatedAt.Before(b.CreatedAt)
		case SortGrade:
			if a.Grade.Rank() != b.Grade.Rank() {
				return a.Grade.Rank() < b.Grade.Rank()
			}
		case SortGradeDesc:
			if a.Grade.Rank() != b.Grade.Rank() {
				return a.Grade.Rank() > b.Grade.Rank()
			}
		case SortName:
			an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
			if an != bn {
				return an < bn
			}
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

// Page applies Offset and Limit.
func (q ListQuery) Page(routes []Route) []Route {
	if q.Offset >= len(routes) {
		return []Route{}
	}
	routes = routes[q.Offset:]
	if q.Limit > 0 && q.Limit < len(routes) {
		routes = routes[:q.Limit]
	}
	return routes
}
