package logger

import "strings"

// Level names as they appear in the level field.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
	LevelFatal = "FATAL"
)

var levelNames = map[string]string{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
	"fatal":   LevelFatal,
}

// enumFields lists fields restricted to a fixed vocabulary. Values are
// lowercased; unknown values are dropped unless keepUnknown is set.
var enumFields = map[string]struct {
	values      []string
	keepUnknown bool
}{
	"status":  {values: []string{"ok", "fail", "skip", "retry", "rate_limited", "cancelled"}, keepUnknown: true},
	"outcome": {values: []string{"ok", "fail", "cancelled", "rate_limited"}},
	"tier":    {values: []string{"free", "premium"}},
}

func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if name, ok := levelNames[strings.ToLower(level)]; ok {
		return name
	}
	return strings.ToUpper(level)
}

// normalizeEnums rewrites enum fields in place.
func normalizeEnums(fields map[string]any) {
	for key, enum := range enumFields {
		raw, ok := fields[key].(string)
		if !ok || raw == "" {
			continue
		}
		v := strings.ToLower(strings.TrimSpace(raw))
		known := false
		for _, allowed := range enum.values {
			if v == allowed {
				known = true
				break
			}
		}
		switch {
		case known || enum.keepUnknown:
			fields[key] = v
		default:
			delete(fields, key)
		}
	}
}

// defaultKeyOrder pins the leading fields of every line; the rest follow
// alphabetically.
var defaultKeyOrder = []string{
	// envelope
	"ts", "level", "component", "event", "status",
	// correlation
	"rid", "rid_full", "ts_unix_nano", "update_id", "user_id", "chat_id", "chat_type", "handler", "conn_id",
	// update routing
	"op", "cb_key", "outcome", "duration_ms", "messages", "kb", "payload", "lang", "username",
	// sessions and matching
	"partner_id", "target_id", "state", "from_state", "to_state", "event_kind", "step",
	"tier", "filter", "reason", "pool_size", "searching", "connections", "dropped",
	// transport and storage
	"action", "endpoint", "attempt", "attempts", "delay_ms", "mode", "listen", "public_url", "db", "host", "port",
	// failures
	"err", "err_code", "error", "error_kind", "cause",
}
