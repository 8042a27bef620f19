package ingest

import (
	"regexp"
	"strings"

	"github.com/feedtriage/triage/internal/model"
)

// severityRegex matches a bare severity token anywhere in a message, used
// as the last-resort severity source when a line carries no structured
// level field.
var severityRegex = regexp.MustCompile(`(?i)\b(TRACE|DEBUG|INFO|WARN|WARNING|ERROR|FATAL|CRITICAL|PANIC)\b`)

// normalizeLevel maps a severity token in any of the common abbreviated
// forms (logfmt "lvl=wrn", bunyan/pino three-letter codes, etc.) to a
// model.Level. It falls back to model.ParseLevel, then to a four-character
// prefix match, before giving up.
func normalizeLevel(s string) (model.Level, bool) {
	if lvl, ok := model.ParseLevel(s); ok {
		return lvl, true
	}
	upper := strings.ToUpper(strings.TrimSpace(s))
	if len(upper) >= 4 {
		switch upper[:4] {
		case "INFO":
			return model.LevelInfo, true
		case "WARN":
			return model.LevelWarn, true
		case "ERRO":
			return model.LevelError, true
		case "DEBU":
			return model.LevelDebug, true
		case "TRAC":
			return model.LevelTrace, true
		case "FATA", "CRIT", "PANI":
			return model.LevelFatal, true
		}
	}
	return model.LevelUnset, false
}

// extractLevelFromText scans free text for a bare severity token.
func extractLevelFromText(message string) model.Level {
	m := severityRegex.FindStringSubmatch(message)
	if len(m) < 2 {
		return model.LevelUnset
	}
	lvl, _ := normalizeLevel(m[1])
	return lvl
}

// pinoLevelToLevel converts a pino/bunyan numeric severity to a model.Level.
func pinoLevelToLevel(n int) model.Level {
	switch {
	case n <= 0:
		return model.LevelUnset
	case n < 20:
		return model.LevelTrace
	case n < 30:
		return model.LevelDebug
	case n < 40:
		return model.LevelInfo
	case n < 50:
		return model.LevelWarn
	case n < 60:
		return model.LevelError
	default:
		return model.LevelFatal
	}
}
