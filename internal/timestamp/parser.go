// Package timestamp extracts timestamps embedded in free-text log lines and
// normalises the many shapes producers emit structured timestamps in
// (RFC3339, space-separated, syslog, bare time, unix epoch at second/
// milli/micro/nano resolution).
package timestamp

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Result is the outcome of ParseFromText.
type Result struct {
	Found     bool
	Timestamp time.Time
	Remaining string
}

var textPatterns = []struct {
	re      *regexp.Regexp
	layouts []string
}{
	{
		re: regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2}))`),
		layouts: []string{
			time.RFC3339Nano,
			time.RFC3339,
		},
	},
	{
		re: regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}[.,]\d+)`),
		layouts: []string{
			"2006-01-02 15:04:05.000000000",
			"2006-01-02 15:04:05.000000",
			"2006-01-02 15:04:05.000",
			"2006-01-02T15:04:05.000000000",
			"2006-01-02T15:04:05.000000",
			"2006-01-02T15:04:05.000",
		},
	},
	{
		re: regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2})`),
		layouts: []string{
			"2006-01-02 15:04:05",
			"2006-01-02T15:04:05",
		},
	},
	{
		re: regexp.MustCompile(`^([A-Za-z]{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2})`),
		layouts: []string{
			"Jan 2 15:04:05",
			"Jan  2 15:04:05",
		},
	},
	{
		re: regexp.MustCompile(`^(\d{2}:\d{2}:\d{2}(?:\.\d+)?)`),
		layouts: []string{
			"15:04:05.000000000",
			"15:04:05.000000",
			"15:04:05.000",
			"15:04:05",
		},
	},
}

// Parser parses timestamps from structured values and free text. It carries
// no mutable state; NewParser exists for symmetry with the rest of the
// ingest pipeline's constructor style and to allow future caching.
type Parser struct{}

// NewParser returns a Parser.
func NewParser() *Parser { return &Parser{} }

// ParseFromText looks for a timestamp at the start of text (after trimming
// surrounding whitespace), returning the parsed time and the text with the
// matched timestamp removed. A timestamp later in the line is not detected.
func (p *Parser) ParseFromText(text string) Result {
	trimmed := strings.TrimSpace(text)
	for _, pat := range textPatterns {
		loc := pat.re.FindStringIndex(trimmed)
		if loc == nil {
			continue
		}
		candidate := pat.re.FindString(trimmed)
		candidate = strings.Replace(candidate, ",", ".", 1)
		for _, layout := range pat.layouts {
			if ts, err := time.Parse(layout, candidate); err == nil {
				remaining := strings.TrimSpace(trimmed[loc[1]:])
				if remaining == "" {
					remaining = trimmed
				}
				return Result{Found: true, Timestamp: ts, Remaining: remaining}
			}
		}
	}
	return Result{Found: false, Remaining: trimmed}
}

// ParseTimestamp parses a structured timestamp value of any shape commonly
// found in JSON/logfmt fields: an RFC3339-ish string, or a numeric unix
// timestamp at second/milli/micro/nano resolution.
func (p *Parser) ParseTimestamp(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case string:
		return parseTimestampString(v)
	case float64:
		return parseUnixTimestamp(v)
	case int:
		return parseUnixTimestamp(float64(v))
	case int64:
		return parseUnixTimestamp(float64(v))
	case uint64:
		return parseUnixTimestamp(float64(v))
	default:
		return time.Time{}, false
	}
}

func parseTimestampString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.000000000",
		"2006-01-02 15:04:05.000",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return parseUnixTimestamp(n)
	}
	return time.Time{}, false
}

// parseUnixTimestamp disambiguates the resolution of a bare numeric
// timestamp by magnitude: <=1e9 seconds, <=1e12 milliseconds, <=1e15
// microseconds, otherwise nanoseconds.
func parseUnixTimestamp(v float64) (time.Time, bool) {
	switch {
	case v <= 0:
		return time.Time{}, false
	case v <= 1e9:
		return time.Unix(int64(v), 0), true
	case v <= 1e12:
		return time.UnixMilli(int64(v)), true
	case v <= 1e15:
		return time.UnixMicro(int64(v)), true
	default:
		return time.Unix(0, int64(v)), true
	}
}

// ExtractLogMessage strips a leading timestamp and severity token from
// text, returning what remains as the display message. If nothing is
// found, the original text is returned unchanged.
func (p *Parser) ExtractLogMessage(text string) string {
	remaining := p.ParseFromText(text).Remaining
	remaining = strings.TrimSpace(remaining)
	if m := leadingSeverityAndColon.FindStringIndex(remaining); m != nil {
		remaining = strings.TrimSpace(remaining[m[1]:])
	}
	if remaining == "" {
		return text
	}
	return remaining
}

var leadingSeverityAndColon = regexp.MustCompile(`(?i)^(TRACE|DEBUG|INFO|WARN|WARNING|ERROR|FATAL|CRITICAL)\s*:?\s*`)
