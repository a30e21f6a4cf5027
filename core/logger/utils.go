package logger

import (
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Event types.
const (
	EventSessionStart   = "session_start"
	EventLogin          = "login"
	EventCommand        = "command"
	EventUnknownCommand = "unknown_command"
	EventWindowChange   = "window_change"
	EventRecording      = "recording"
	EventSessionEnd     = "session_end"
)

// Common fields.
const (
	FieldTimestampMicros = "timestamp_micros"
	FieldSessionID       = "session_id"
	FieldEvent           = "event"
)

// LogEntry is a single logged event.
type LogEntry struct {
	*structpb.Struct
}

// GetString returns the string value of the field or "" if it isn't set.
func (le *LogEntry) GetString(field string) string {
	return le.GetFields()[field].GetStringValue()
}

// GetNumber returns the number value of the field or 0 if it isn't set.
func (le *LogEntry) GetNumber(field string) float64 {
	return le.GetFields()[field].GetNumberValue()
}

// GetBool returns the bool value of the field or false if it isn't set.
func (le *LogEntry) GetBool(field string) bool {
	return le.GetFields()[field].GetBoolValue()
}

// GetStrings returns the string items of a list field.
func (le *LogEntry) GetStrings(field string) []string {
	var out []string
	for _, v := range le.GetFields()[field].GetListValue().GetValues() {
		out = append(out, v.GetStringValue())
	}
	return out
}

// GetEvent returns the event type.
func (le *LogEntry) GetEvent() string {
	return le.GetString(FieldEvent)
}

// GetSessionId returns the session the event belongs to.
func (le *LogEntry) GetSessionId() string {
	return le.GetString(FieldSessionID)
}

// GetTimestampMicros returns the time the event was recorded.
func (le *LogEntry) GetTimestampMicros() int64 {
	return int64(le.GetNumber(FieldTimestampMicros))
}

// LogRecorder is a callback that stores events in an external datastore.
type LogRecorder func(le *LogEntry) error

// Logger captures interaction event logs for shell sessions.
type Logger struct {
	Record LogRecorder
}

// NewJSONLinesLogRecorder creates a Logger that exports logs in newline
// delimited JSON object format. It's safe for concurrent use.
func NewJSONLinesLogRecorder(w io.Writer) *Logger {
	var mu sync.Mutex
	return &Logger{
		Record: func(le *LogEntry) error {
			entry, err := protojson.Marshal(le.Struct)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			// A single write keeps lines from separate processes appending to the
			// same file intact.
			_, err = w.Write(append(entry, '\n'))
			return err
		},
	}
}

// Discard returns a Logger that drops every event.
func Discard() *Logger {
	return &Logger{
		Record: func(*LogEntry) error { return nil },
	}
}

func (l *Logger) recordEvent(sessionID, event string, fields map[string]interface{}) error {
	values := map[string]interface{}{
		FieldTimestampMicros: time.Now().UnixMicro(),
		FieldSessionID:       sessionID,
		FieldEvent:           event,
	}
	for k, v := range fields {
		values[k] = normalize(v)
	}

	pb, err := structpb.NewStruct(values)
	if err != nil {
		return fmt.Errorf("logging %s: %w", event, err)
	}
	return l.Record(&LogEntry{pb})
}

// normalize converts values structpb can't represent directly.
func normalize(v interface{}) interface{} {
	switch v := v.(type) {
	case []string:
		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	default:
		return v
	}
}

// NewSession creates a logger with a new random session ID.
func (l *Logger) NewSession() *SessionLogger {
	return l.Session(fmt.Sprintf("%016x", rand.Uint64()))
}

// Session creates a logger attached to an existing session ID.
func (l *Logger) Session(sessionID string) *SessionLogger {
	return &SessionLogger{Logger: l, sessionID: sessionID}
}

// Sessionless creates a logger for events that don't belong to a session.
func (l *Logger) Sessionless() *SessionLogger {
	return &SessionLogger{Logger: l, sessionID: ""}
}

// SessionLogger logs messages with a shared session ID. A nil SessionLogger
// discards events.
type SessionLogger struct {
	*Logger
	sessionID string
}

// SessionID returns the ID attached to every event.
func (l *SessionLogger) SessionID() string {
	if l == nil {
		return ""
	}
	return l.sessionID
}

// Record logs an event with the given fields.
func (l *SessionLogger) Record(event string, fields map[string]interface{}) error {
	if l == nil || l.Logger == nil {
		return nil
	}
	return l.recordEvent(l.sessionID, event, fields)
}

// RecordSessionStart logs the start of a shell session.
func (l *SessionLogger) RecordSessionStart(dir string, interactive bool) error {
	return l.Record(EventSessionStart, map[string]interface{}{
		"dir":         dir,
		"interactive": interactive,
	})
}

// RecordLogin logs an authentication attempt.
func (l *SessionLogger) RecordLogin(username, remoteAddr string, success bool) error {
	return l.Record(EventLogin, map[string]interface{}{
		"username":    username,
		"remote_addr": remoteAddr,
		"success":     success,
	})
}

// RecordCommand logs a line run by the shell and its exit status.
func (l *SessionLogger) RecordCommand(line string, status int) error {
	return l.Record(EventCommand, map[string]interface{}{
		"line":   line,
		"status": status,
	})
}

// RecordUnknownCommand logs a command that couldn't be started.
func (l *SessionLogger) RecordUnknownCommand(args []string, err error) error {
	return l.Record(EventUnknownCommand, map[string]interface{}{
		"command": args,
		"error":   err,
	})
}

// RecordWindowChange logs a terminal update.
func (l *SessionLogger) RecordWindowChange(term string, width, height int, isPty bool) error {
	return l.Record(EventWindowChange, map[string]interface{}{
		"term":   term,
		"width":  width,
		"height": height,
		"is_pty": isPty,
	})
}

// RecordRecording logs the name of the session's terminal recording.
func (l *SessionLogger) RecordRecording(name string) error {
	return l.Record(EventRecording, map[string]interface{}{
		"name": name,
	})
}

// RecordSessionEnd logs the end of a session and its exit status.
func (l *SessionLogger) RecordSessionEnd(status int) error {
	return l.Record(EventSessionEnd, map[string]interface{}{
		"status": status,
	})
}
