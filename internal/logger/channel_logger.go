// internal/logger/channel_logger.go

package logger

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gobwas/glob"

	"github.com/orgoj/logchannel/internal/channel"
	"github.com/orgoj/logchannel/internal/config"
	"github.com/orgoj/logchannel/internal/truncate"
)

// ChannelLogger delivers records to one queue or topic through a
// channel.Manager.
type ChannelLogger struct {
	name    string
	format  string // "json" or "text"
	maxSize int64  // 0 means unlimited
	sources []glob.Glob
	manager *channel.Manager
}

// NewChannelLogger creates a logger for dest sending through mgr.
func NewChannelLogger(dest config.ChannelDestination, mgr *channel.Manager) (*ChannelLogger, error) {
	if dest.Name == "" {
		return nil, fmt.Errorf("channel logger requires a name")
	}
	if mgr == nil {
		return nil, fmt.Errorf("channel logger '%s' requires a manager", dest.Name)
	}

	format := dest.Format
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "text" {
		return nil, fmt.Errorf("invalid channel logger format: %s", format)
	}

	var maxSize int64
	if dest.MaxMessageSize != "" {
		var err error
		maxSize, err = config.ParseSize(dest.MaxMessageSize)
		if err != nil {
			return nil, fmt.Errorf("invalid max_message_size '%s' for destination '%s': %w", dest.MaxMessageSize, dest.Name, err)
		}
	}

	sources := make([]glob.Glob, 0, len(dest.Sources))
	for _, pattern := range dest.Sources {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid source pattern '%s' for destination '%s': %w", pattern, dest.Name, err)
		}
		sources = append(sources, g)
	}

	return &ChannelLogger{
		name:    dest.Name,
		format:  format,
		maxSize: maxSize,
		sources: sources,
		manager: mgr,
	}, nil
}

// Log formats record and sends it. JSON records go out as objects, text
// records as a single line.
func (l *ChannelLogger) Log(record map[string]interface{}) error {
	if l.format == "json" {
		if l.maxSize > 0 {
			record = truncate.Clone(record)
			if _, err := truncate.TruncateMapIfNeeded(record, l.maxSize); err != nil {
				return fmt.Errorf("failed to truncate record: %w", err)
			}
		}
		return l.manager.Send(record)
	}

	line := formatText(record)
	if l.maxSize > 0 {
		line = truncateLine(line, int(l.maxSize))
	}
	return l.manager.Send(line)
}

// Accepts reports whether records from source are routed here. A logger
// without source patterns accepts everything.
func (l *ChannelLogger) Accepts(source string) bool {
	if len(l.sources) == 0 {
		return true
	}
	for _, g := range l.sources {
		if g.Match(source) {
			return true
		}
	}
	return false
}

// Manager returns the channel manager this logger sends through.
func (l *ChannelLogger) Manager() *channel.Manager {
	return l.manager
}

// Close releases the channel connection. The manager stays registered and
// reconnects on the next record.
func (l *ChannelLogger) Close() error {
	l.manager.Release()
	return nil
}

// Name returns the name of the logger destination.
func (l *ChannelLogger) Name() string {
	return l.name
}

// formatText converts the record map into a simple text line format.
// Example: [TIME] LEVEL: msg key=value key2=value2 ...
func formatText(record map[string]interface{}) string {
	var sb strings.Builder

	timestamp := time.Now().UTC()
	switch ts := record["time"].(type) {
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			timestamp = parsed
		}
	case float64:
		// Milliseconds since epoch
		timestamp = time.UnixMilli(int64(ts)).UTC()
	}
	sb.WriteString("[")
	sb.WriteString(timestamp.Format("2006-01-02T15:04:05.000Z"))
	sb.WriteString("] ")

	levelStr := "INFO"
	switch lv := record["level"].(type) {
	case float64:
		levelStr = levelToString(int(lv))
	case int:
		levelStr = levelToString(lv)
	}
	sb.WriteString(levelStr)
	sb.WriteString(": ")

	msg := "-"
	if m, ok := record["msg"].(string); ok && m != "" {
		msg = m
	}
	sb.WriteString(msg)

	keys := make([]string, 0, len(record))
	for k := range record {
		if k == "time" || k == "level" || k == "msg" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		sb.WriteString(" ")
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(formatValue(record[k]))
	}

	return sb.String()
}

// formatValue converts different types to string for text logging.
func formatValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		if strings.ContainsAny(v, " \t\n\"") {
			return strconv.Quote(v)
		}
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return "<nil>"
	default:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", v)
	}
}

const truncatedMarker = "...truncated"

// truncateLine cuts line to at most maxLength bytes on a rune boundary and
// marks the cut. Limits too small for the marker get a bare cut.
func truncateLine(line string, maxLength int) string {
	if len(line) <= maxLength {
		return line
	}
	keep, marker := maxLength-len(truncatedMarker), truncatedMarker
	if keep <= 0 {
		keep, marker = maxLength, ""
	}
	for keep > 0 && !utf8.RuneStart(line[keep]) {
		keep--
	}
	return line[:keep] + marker
}

// levelToString converts Bunyan-like level numbers to strings.
func levelToString(level int) string {
	switch {
	case level <= 10:
		return "TRACE"
	case level <= 20:
		return "DEBUG"
	case level <= 30:
		return "INFO"
	case level <= 40:
		return "WARN"
	case level <= 50:
		return "ERROR"
	default:
		return "FATAL"
	}
}

// Ensure ChannelLogger implements the Logger interface.
var _ Logger = (*ChannelLogger)(nil)
