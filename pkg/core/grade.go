// pkg/core/grade.go
package core

import (
	"fmt"
	"strconv"
	"strings"
)

// MinGradeRank and MaxGradeRank bound the V-scale offered by the editor.
const (
	MinGradeRank = 1
	MaxGradeRank = 17
)

// Grade is a bouldering V-grade token such as "V5".
type Grade string

// Grades lists V1..V17 in ascending order.
var Grades = func() []Grade {
	out := make([]Grade, 0, MaxGradeRank-MinGradeRank+1)
	for i := MinGradeRank; i <= MaxGradeRank; i++ {
		out = append(out, GradeFromRank(i))
	}
	return out
}()

// GradeFromRank builds the token for a numeric rank.
func GradeFromRank(rank int) Grade {
	return Grade(fmt.Sprintf("V%d", rank))
}

// ParseGrade accepts "V5", "v5" or " V5 " and returns the canonical token.
func ParseGrade(s string) (Grade, bool) {
	g := Grade(strings.ToUpper(strings.TrimSpace(s)))
	if g.Rank() == 0 {
		return "", false
	}
	return g, true
}

// Rank returns the numeric difficulty, or 0 for an unrecognized token.
func (g Grade) Rank() int {
	s := string(g)
	if len(s) < 2 || s[0] != 'V' {
		return 0
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil || n < MinGradeRank || n > MaxGradeRank {
		return 0
	}
	// reject forms like "V05"
	if strconv.Itoa(n) != s[1:] {
		return 0
	}
	return n
}

// Valid reports whether g is a recognized V-grade.
func (g Grade) Valid() bool {
	return g.Rank() != 0
}
