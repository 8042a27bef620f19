package ingest

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/feedtriage/triage/internal/model"
	"github.com/feedtriage/triage/internal/timestamp"
)

var tsParser = timestamp.NewParser()

var messageKeys = []string{"message", "msg", "log", "body", "text"}
var levelKeys = []string{"level", "severity", "lvl", "loglevel", "log_level"}
var timeKeys = []string{"timestamp", "time", "ts", "@timestamp"}

// normalizeLine turns one raw line into a model.LogEntry, attempting JSON,
// then logfmt, then a plain-text fallback, per the documented parse order:
// JSON -> logfmt -> common-pattern regexes -> fallback. The "common-pattern
// regexes" step is folded into the fallback path via timestamp/severity
// extraction from free text, since both JSON and logfmt fields already
// cover the structured case.
func normalizeLine(line string) model.LogEntry {
	if e, ok := parseJSONEntry(line); ok {
		return e
	}
	if e, ok := parseLogfmtEntry(line); ok {
		return e
	}
	return fallbackEntry(line)
}

func parseJSONEntry(line string) (model.LogEntry, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || trimmed[0] != '{' {
		return model.LogEntry{}, false
	}
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return model.LogEntry{}, false
	}

	e := model.LogEntry{Message: line, Fields: model.NewFields()}

	if msg := firstStringField(raw, messageKeys); msg != "" {
		e.Message = msg
	}

	if lvl := firstLevelField(raw, levelKeys); lvl != model.LevelUnset {
		e.Level = lvl
	} else if pino, ok := firstNumericField(raw, levelKeys); ok {
		e.Level = pinoLevelToLevel(int(pino))
	}
	if e.Level == model.LevelUnset {
		e.Level = extractLevelFromText(e.Message)
	}

	e.Timestamp = firstTimestampField(raw, timeKeys)
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	consumed := map[string]bool{}
	for _, k := range messageKeys {
		consumed[k] = true
	}
	for _, k := range levelKeys {
		consumed[k] = true
	}
	for _, k := range timeKeys {
		consumed[k] = true
	}
	for k, v := range raw {
		if consumed[k] {
			continue
		}
		e.Fields.Set(k, stringifyValue(v))
	}
	return e, true
}

func parseLogfmtEntry(line string) (model.LogEntry, bool) {
	pairs, ok := parseLogfmt(line)
	if !ok {
		return model.LogEntry{}, false
	}

	e := model.LogEntry{Message: line, Fields: model.NewFields(), Timestamp: time.Now()}
	haveMessage := false
	for _, p := range pairs {
		switch {
		case containsFold(messageKeys, p.key):
			e.Message = p.value
			haveMessage = true
		case containsFold(levelKeys, p.key):
			if lvl, ok := normalizeLevel(p.value); ok {
				e.Level = lvl
			}
		case containsFold(timeKeys, p.key):
			if ts, ok := tsParser.ParseTimestamp(p.value); ok {
				e.Timestamp = ts
			}
		default:
			e.Fields.Set(p.key, p.value)
		}
	}
	if e.Level == model.LevelUnset {
		e.Level = extractLevelFromText(e.Message)
	}
	if !haveMessage {
		e.Message = line
	}
	return e, true
}

func fallbackEntry(line string) model.LogEntry {
	result := tsParser.ParseFromText(line)
	e := model.LogEntry{
		Fields: model.NewFields(),
	}
	if result.Found {
		e.Timestamp = result.Timestamp
	} else {
		e.Timestamp = time.Now()
	}
	e.Message = tsParser.ExtractLogMessage(line)
	e.Level = extractLevelFromText(line)
	return e
}

func firstStringField(raw map[string]interface{}, keys []string) string {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func firstLevelField(raw map[string]interface{}, keys []string) model.Level {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if s, ok := v.(string); ok {
				if lvl, ok := normalizeLevel(s); ok {
					return lvl
				}
			}
		}
	}
	return model.LevelUnset
}

func firstNumericField(raw map[string]interface{}, keys []string) (float64, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if n, ok := v.(float64); ok {
				return n, true
			}
		}
	}
	return 0, false
}

func firstTimestampField(raw map[string]interface{}, keys []string) time.Time {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if ts, ok := tsParser.ParseTimestamp(v); ok {
				return ts
			}
		}
	}
	return time.Time{}
}

func stringifyValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func containsFold(keys []string, key string) bool {
	for _, k := range keys {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}
