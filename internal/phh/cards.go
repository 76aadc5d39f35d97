package phh

import (
	"fmt"
	"strings"

	"github.com/lox/fairtable/poker"
)

// FormatCards concatenates cards in PHH notation, e.g. "AhKh".
func FormatCards(cards []poker.Card) string {
	var b strings.Builder
	for _, c := range cards {
		b.WriteString(c.String())
	}
	return b.String()
}

// ParseCards splits concatenated PHH cards. "??" stands for an unknown card
// and is rejected.
func ParseCards(s string) ([]poker.Card, error) {
	s = strings.TrimSpace(s)
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("phh: odd card string %q", s)
	}
	out := make([]poker.Card, 0, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		c, err := poker.ParseCard(s[i : i+2])
		if err != nil {
			return nil, fmt.Errorf("phh: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}
