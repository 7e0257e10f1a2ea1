// internal/enricher/enricher.go

package enricher

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Standard Bunyan fields
const (
	fieldVersion  = "v"
	fieldName     = "name"
	fieldLevel    = "level"
	fieldTime     = "time"
	fieldMsg      = "msg"
	fieldHostname = "hostname"
	fieldPid      = "pid"
	fieldSource   = "source"
	fieldClientIP = "client_ip"
)

// Log levels according to Bunyan
const (
	TRACE = 10
	DEBUG = 20
	INFO  = 30
	WARN  = 40
	ERROR = 50
	FATAL = 60
)

// DefaultLogLevel is INFO (30)
const DefaultLogLevel = INFO

// AppName is written to the Bunyan name field.
const AppName = "logchannel"

var levelNames = map[string]int{
	"trace":   TRACE,
	"debug":   DEBUG,
	"info":    INFO,
	"warn":    WARN,
	"warning": WARN,
	"error":   ERROR,
	"fatal":   FATAL,
}

// Cached system values to avoid repeated syscalls
var (
	cachedHostname string
	cachedPid      int
	cacheOnce      sync.Once
)

func initCachedValues() {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	cachedHostname = hostname
	cachedPid = os.Getpid()
}

// now is replaced in tests.
var now = time.Now

// NewRecord builds the record relayed for one client submission. Client data
// is merged over the Bunyan defaults; "message" becomes "msg" and textual
// levels are mapped to Bunyan numbers. The fields identifying the relay
// (v, hostname, pid, time, source, client_ip) cannot be overridden.
func NewRecord(source, clientIP string, data map[string]interface{}) map[string]interface{} {
	cacheOnce.Do(initCachedValues)

	record := make(map[string]interface{}, len(data)+9)
	record[fieldName] = AppName
	record[fieldLevel] = DefaultLogLevel
	record[fieldMsg] = ""

	for k, v := range data {
		switch k {
		case "message":
			if _, hasMsg := data[fieldMsg]; !hasMsg && v != nil {
				record[fieldMsg] = stringify(v)
			}
		case fieldLevel:
			record[fieldLevel] = normalizeLevel(v)
		default:
			record[k] = v
		}
	}

	record[fieldVersion] = 0
	record[fieldHostname] = cachedHostname
	record[fieldPid] = cachedPid
	record[fieldTime] = now().UTC().Format(time.RFC3339Nano)
	record[fieldSource] = source
	if clientIP != "" {
		record[fieldClientIP] = clientIP
	}
	return record
}

// normalizeLevel converts a client supplied level to a Bunyan number.
// Unknown values fall back to DefaultLogLevel.
func normalizeLevel(v interface{}) int {
	switch lv := v.(type) {
	case float64:
		return int(lv)
	case int:
		return lv
	case string:
		if n, err := strconv.Atoi(lv); err == nil {
			return n
		}
		if n, ok := levelNames[strings.ToLower(lv)]; ok {
			return n
		}
	}
	return DefaultLogLevel
}

func stringify(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
