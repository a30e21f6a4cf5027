package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(le *LogEntry)) error {
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var rawEntry json.RawMessage
		if err := decoder.Decode(&rawEntry); err != nil {
			return err
		}

		var pb structpb.Struct
		if err := protojson.Unmarshal(rawEntry, &pb); err != nil {
			return err
		}

		handler(&LogEntry{&pb})
	}
	return nil
}

// InteractionReport groups events by session.
type InteractionReport struct {
	// Map of sessionID -> interactions
	interactions map[string]*InteractiveSession
}

// InteractiveSession summarizes a single session.
type InteractiveSession struct {
	Login struct {
		Username   string `json:"username"`
		RemoteAddr string `json:"remote_addr,omitempty"`
	} `json:"login"`
	TTYLog       string `json:"tty_log,omitempty"`
	LogEntries   int    `json:"log_entries"`
	TerminalName string `json:"terminal_name,omitempty"`
	IsPty        bool   `json:"is_pty"`
	ExitStatus   int    `json:"exit_status"`

	Commands        []string `json:"commands"`
	UnknownCommands []string `json:"unknown_commands,omitempty"`
}

func (i *InteractiveSession) Update(le *LogEntry) {
	i.LogEntries++

	switch le.GetEvent() {
	case EventLogin:
		i.Login.Username = le.GetString("username")
		i.Login.RemoteAddr = le.GetString("remote_addr")
	case EventCommand:
		i.Commands = append(i.Commands, le.GetString("line"))
	case EventUnknownCommand:
		i.UnknownCommands = append(i.UnknownCommands, strings.Join(le.GetStrings("command"), " "))
	case EventWindowChange:
		i.TerminalName = le.GetString("term")
		i.IsPty = le.GetBool("is_pty")
	case EventRecording:
		i.TTYLog = le.GetString("name")
	case EventSessionEnd:
		i.ExitStatus = int(le.GetNumber("status"))
	}
}

func (i *InteractionReport) init() {
	if i.interactions == nil {
		i.interactions = make(map[string]*InteractiveSession)
	}
}

// MarshalJSON implements custom JSON marshaler.
func (i *InteractionReport) MarshalJSON() ([]byte, error) {
	i.init()

	return json.Marshal(i.interactions)
}

// Session returns the summary of the given session or nil.
func (i *InteractionReport) Session(sessionID string) *InteractiveSession {
	i.init()
	return i.interactions[sessionID]
}

func (i *InteractionReport) Update(le *LogEntry) {
	i.init()

	sessionID := le.GetSessionId()
	if sessionID == "" {
		return
	}
	report, ok := i.interactions[sessionID]
	if !ok {
		report = &InteractiveSession{}
		i.interactions[sessionID] = report
	}

	report.Update(le)
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	Sessions       int        `json:"sessions"`
	InvalidEntries StrCounter `json:"unknown_log_entries,omitempty"`

	Login          LoginReport          `json:"login_report"`
	Command        CommandReport        `json:"command_report"`
	UnknownCommand UnknownCommandReport `json:"unknown_command_report"`
	Terminal       TerminalReport       `json:"terminal_report"`
}

func (r *Report) Update(le *LogEntry) {
	r.LogEntries++

	switch event := le.GetEvent(); event {
	case EventSessionStart:
		r.Sessions++
	case EventLogin:
		r.Login.update(le)
	case EventCommand:
		r.Command.update(le)
	case EventUnknownCommand:
		r.UnknownCommand.update(le)
	case EventWindowChange:
		r.Terminal.update(le)
	case EventRecording, EventSessionEnd:
		// Ignore
	default:
		r.InvalidEntries.Increment(fmt.Sprintf("%q", event))
	}
}

type LoginReport struct {
	// List of usernames and their counts.
	Usernames StrCounter `json:"usernames"`
	// List of remote addresses and their counts.
	RemoteAddrs StrCounter `json:"remote_addrs"`
	// List of login attempt results and their counts.
	Results StrCounter `json:"results"`
}

func (r *LoginReport) update(le *LogEntry) {
	r.Usernames.Increment(le.GetString("username"))
	r.RemoteAddrs.Increment(hostOnly(le.GetString("remote_addr")))
	if le.GetBool("success") {
		r.Results.Increment("success")
	} else {
		r.Results.Increment("failure")
	}
}

// hostOnly strips the port from a remote address.
func hostOnly(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[:i]
	}
	return addr
}

type CommandReport struct {
	// Name of the first command in the line.
	CommandNames StrCounter `json:"command_names"`
	// Exit statuses of the lines.
	Statuses StrCounter `json:"statuses"`
}

func (r *CommandReport) update(le *LogEntry) {
	if fields := strings.Fields(le.GetString("line")); len(fields) > 0 {
		r.CommandNames.Increment(fields[0])
	}
	r.Statuses.Increment(fmt.Sprintf("%d", int(le.GetNumber("status"))))
}

type UnknownCommandReport struct {
	CommandNames *PathCounter `json:"command_names"`
}

func (r *UnknownCommandReport) update(le *LogEntry) {
	if r.CommandNames == nil {
		r.CommandNames = NewPathCounter("command", "error")
	}
	if command := le.GetStrings("command"); len(command) > 0 {
		r.CommandNames.Increment(command[0], le.GetString("error"))
	}
}

type TerminalReport struct {
	Terms StrCounter `json:"terms"`
}

func (r *TerminalReport) update(le *LogEntry) {
	if le.GetBool("is_pty") {
		r.Terms.Increment(le.GetString("term"))
	}
}

// StrCounter counts the number of strings seen.
type StrCounter struct {
	internal map[string]int
}

// Increment adds one to the given key.
func (s *StrCounter) Increment(toAdd string) {
	if s.internal == nil {
		s.internal = make(map[string]int)
	}

	s.internal[toAdd]++
}

// Get returns the count for the key.
func (s *StrCounter) Get(key string) int {
	return s.internal[key]
}

// MarshalJSON implements custom JSON marshaler.
func (s StrCounter) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.internal)
}

func NewPathCounter(cols ...string) *PathCounter {
	return &PathCounter{
		cols:     cols,
		internal: make(map[string]int),
	}
}

// PathCounter counts the number of tuples seen.
type PathCounter struct {
	cols     []string
	internal map[string]int
}

// Increment adds one to the given key.
func (ctr *PathCounter) Increment(toAdd ...string) {
	if len(toAdd) != len(ctr.cols) {
		panic("wrong number of columns to add")
	}

	ctr.internal[toKey(toAdd...)]++
}

// Get returns the count for the tuple.
func (ctr *PathCounter) Get(key ...string) int {
	return ctr.internal[toKey(key...)]
}

// MarshalJSON implements custom JSON marshaler.
func (ctr *PathCounter) MarshalJSON() ([]byte, error) {
	type Count struct {
		Count  int               `json:"count"`
		Fields map[string]string `json:"event"`
		Path   string            `json:"-"`
	}

	var out []Count
	for k, v := range ctr.internal {
		count := Count{
			Count:  v,
			Path:   k,
			Fields: make(map[string]string),
		}

		splitPath := fromKey(k)
		for colNum, colVal := range ctr.cols {
			count.Fields[colVal] = splitPath[colNum]
		}

		out = append(out, count)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Path < out[j].Path
		}
		return out[i].Count > out[j].Count
	})

	return json.Marshal(out)
}

func toKey(vals ...string) string {
	key, _ := json.Marshal(vals)
	return string(key)
}

func fromKey(key string) (out []string) {
	json.Unmarshal([]byte(key), &out)
	return
}
