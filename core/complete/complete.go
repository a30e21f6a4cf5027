// Package complete implements command name completion for the shell's line
// editor.
package complete

import (
	"sort"
	"strings"
	"unicode"
)

// Kind is the type of a completion Action.
type Kind int

const (
	// Bell means there's nothing to complete, the terminal should beep.
	Bell Kind = iota
	// Insert means Text should be appended to the buffer.
	Insert
	// Replace means the buffer should be replaced by Text.
	Replace
	// List means Candidates should be shown to the user, the buffer is kept.
	List
)

func (k Kind) String() string {
	switch k {
	case Bell:
		return "bell"
	case Insert:
		return "insert"
	case Replace:
		return "replace"
	case List:
		return "list"
	default:
		return "unknown"
	}
}

// Action is the result of a completion request.
type Action struct {
	Kind       Kind
	Text       string
	Candidates []string
}

// Apply returns the buffer after the action is performed.
func (a Action) Apply(buffer string) string {
	switch a.Kind {
	case Insert:
		return buffer + a.Text
	case Replace:
		return a.Text
	default:
		return buffer
	}
}

// Engine completes the first word of the edit buffer to a builtin or an
// executable on the PATH. It remembers the previous request so a second Tab
// on an ambiguous, unchanged buffer lists the candidates.
type Engine struct {
	// Builtins holds the builtin names offered for completion.
	Builtins []string
	// Executables calls f for every executable name on the PATH.
	Executables func(f func(name string))

	lastBuffer string
	listNext   bool
}

// NewEngine creates a completion engine.
func NewEngine(builtins []string, executables func(f func(name string))) *Engine {
	return &Engine{
		Builtins:    builtins,
		Executables: executables,
	}
}

// Complete handles a completion request for the buffer.
func (e *Engine) Complete(buffer string) Action {
	if strings.IndexFunc(buffer, unicode.IsSpace) >= 0 {
		// Only the command name is completed.
		e.listNext = false
		return Action{Kind: Bell}
	}

	if buffer != e.lastBuffer {
		e.listNext = false
		e.lastBuffer = buffer
	}

	builtins := matchPrefix(e.Builtins, buffer)
	executables := e.matchExecutables(buffer)

	// A single builtin wins unless an executable also extends the buffer, but
	// a buffer that already spells the builtin always completes to it.
	if len(builtins) == 1 && (len(without(executables, builtins[0])) == 0 || buffer == builtins[0]) {
		e.listNext = false
		return Action{Kind: Insert, Text: strings.TrimPrefix(builtins[0], buffer) + " "}
	}

	candidates := dedupe(append(builtins, executables...))
	switch len(candidates) {
	case 0:
		e.listNext = false
		return Action{Kind: Bell}
	case 1:
		e.listNext = false
		return Action{Kind: Replace, Text: candidates[0] + " "}
	}

	if prefix := LongestCommonPrefix(candidates); len(prefix) > len(buffer) {
		e.listNext = false
		return Action{Kind: Insert, Text: strings.TrimPrefix(prefix, buffer)}
	}

	if !e.listNext {
		e.listNext = true
		return Action{Kind: Bell}
	}
	e.listNext = false
	return Action{Kind: List, Candidates: candidates}
}

func (e *Engine) matchExecutables(prefix string) []string {
	if e.Executables == nil {
		return nil
	}
	var out []string
	e.Executables(func(name string) {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	})
	return out
}

func matchPrefix(names []string, prefix string) []string {
	var out []string
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	return out
}

func without(names []string, exclude string) []string {
	var out []string
	for _, name := range names {
		if name != exclude {
			out = append(out, name)
		}
	}
	return out
}

// dedupe sorts the names and removes duplicates.
func dedupe(names []string) []string {
	sort.Strings(names)
	out := names[:0]
	for i, name := range names {
		if i > 0 && name == names[i-1] {
			continue
		}
		out = append(out, name)
	}
	return out
}

// LongestCommonPrefix returns the longest string that's a prefix of all the
// given strings.
func LongestCommonPrefix(strs []string) string {
	if len(strs) == 0 {
		return ""
	}

	prefix := strs[0]
	for _, s := range strs[1:] {
		i := 0
		for i < len(prefix) && i < len(s) && prefix[i] == s[i] {
			i++
		}
		prefix = prefix[:i]
		if prefix == "" {
			break
		}
	}
	return prefix
}
