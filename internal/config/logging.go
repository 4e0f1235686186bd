package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/nugget/reactor/internal/llm"
)

// LevelTrace is the level the reasoner clients log full request and
// response payloads at. It sits below debug, where the mission loop
// reports each iteration and the CLI drains the event bus.
const LevelTrace = llm.LevelTrace

// logLevels maps the log_level config values to slog levels.
var logLevels = map[string]slog.Level{
	"":        slog.LevelInfo,
	"info":    slog.LevelInfo,
	"trace":   LevelTrace,
	"debug":   slog.LevelDebug,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// ParseLogLevel resolves a log_level value, ignoring case and
// surrounding space. An empty value means info.
func ParseLogLevel(s string) (slog.Level, error) {
	level, ok := logLevels[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return slog.LevelInfo, fmt.Errorf("log_level %q: want trace, debug, info, warn or error", s)
	}
	return level, nil
}

// ReplaceLogLevelNames prints [LevelTrace] as TRACE. slog would
// otherwise show it as DEBUG-4.
func ReplaceLogLevelNames(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if level, ok := a.Value.Any().(slog.Level); ok && level == LevelTrace {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}
