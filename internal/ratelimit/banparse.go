package ratelimit

import (
	"regexp"
	"strconv"
	"time"
)

var (
	hourPattern   = regexp.MustCompile(`(\d+)\s+hour`)
	minutePattern = regexp.MustCompile(`(\d+)\s+minute`)
	secondPattern = regexp.MustCompile(`(\d+)\s+second`)
)

// defaultBanDuration is used when the ban message's duration string
// fails to parse (spec.md §4.B: "default 300 on parse failure").
const defaultBanDuration = 300 * time.Second

// ParseBanDuration parses a substring of the form
// "ban expires in [H hours][, M minutes][, S seconds]" out of a
// response body, ported from internal/crawler/retry.go's
// parseIPBanDuration but adapted to the spec's exact phrase and
// default-on-failure behavior instead of the teacher's "no match = not
// a ban" signal. The duration text is read up to the first closing
// parenthesis after the phrase; a phrase with no ")" after it yields
// the default.
func ParseBanDuration(body string) time.Duration {
	idx := banPhrase.FindStringSubmatchIndex(body)
	if idx == nil {
		return defaultBanDuration
	}
	durationStr := body[idx[2]:idx[3]]

	var total time.Duration
	matched := false

	if m := hourPattern.FindStringSubmatch(durationStr); len(m) >= 2 {
		if v, err := strconv.Atoi(m[1]); err == nil {
			total += time.Duration(v) * time.Hour
			matched = true
		}
	}
	if m := minutePattern.FindStringSubmatch(durationStr); len(m) >= 2 {
		if v, err := strconv.Atoi(m[1]); err == nil {
			total += time.Duration(v) * time.Minute
			matched = true
		}
	}
	if m := secondPattern.FindStringSubmatch(durationStr); len(m) >= 2 {
		if v, err := strconv.Atoi(m[1]); err == nil {
			total += time.Duration(v) * time.Second
			matched = true
		}
	}

	if !matched {
		return defaultBanDuration
	}
	return total
}

var banPhrase = regexp.MustCompile(`ban expires in (.+?)\)`)
