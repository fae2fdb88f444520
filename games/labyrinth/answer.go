package labyrinth

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// normalizeAnswer trims, composes and case folds s. Inner spacing is kept.
func normalizeAnswer(s string) string {
	// Casers are stateful, so one is built per call.
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// Matches reports whether a submitted answer is accepted for r.
func (r *Riddle) Matches(answer string) bool {
	return normalizeAnswer(answer) == normalizeAnswer(r.Answer)
}
