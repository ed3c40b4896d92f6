package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	spaceRe = regexp.MustCompile(`\s+`)
	seqRe   = regexp.MustCompile(`[\s\-#]*(\d+)$`)
)

// MaxBayNumberLen matches the bay_number column size.
const MaxBayNumberLen = 64

// BayNumber holds the structured form of a bay's human label.
type BayNumber struct {
	Label  string // normalized label as stored
	Prefix string // everything before the trailing sequence number
	Seq    int    // trailing number, 0 when the label has none
}

// ParseBayNumber normalizes a raw bay label and splits off its trailing sequence number.
func ParseBayNumber(raw string) (BayNumber, error) {
	// '#' is a separator ("Bay#3"), not part of the name
	s := strings.ReplaceAll(raw, "#", " ")
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	if s == "" {
		return BayNumber{}, fmt.Errorf("bay number is empty: %q", raw)
	}
	if utf8.RuneCountInString(s) > MaxBayNumberLen {
		return BayNumber{}, fmt.Errorf("bay number longer than %d characters: %q", MaxBayNumberLen, raw)
	}

	parsed := BayNumber{Label: s, Prefix: s}
	if loc := seqRe.FindStringSubmatchIndex(s); loc != nil {
		if n, err := strconv.Atoi(s[loc[2]:loc[3]]); err == nil {
			parsed.Seq = n
			parsed.Prefix = strings.TrimSpace(s[:loc[0]])
		}
	}
	return parsed, nil
}

// Less orders labels naturally: "Bay 2" sorts before "Bay 10".
func Less(a, b BayNumber) bool {
	pa, pb := strings.ToLower(a.Prefix), strings.ToLower(b.Prefix)
	if pa != pb {
		return pa < pb
	}
	if a.Seq != b.Seq {
		return a.Seq < b.Seq
	}
	return a.Label < b.Label
}
