package complete

import (
	"fmt"
	"io"
	"strings"

	"github.com/abiosoft/readline"
)

// Listener connects an Engine to a readline instance. Completion is
// triggered by Tab.
type Listener struct {
	Engine *Engine
	// Bell rings the terminal bell.
	Bell func()
	// Output receives candidate listings. It should redraw the prompt and
	// buffer after each write, as readline.Instance.Stdout does.
	Output io.Writer
	// Prompt returns the prompt, which is echoed above a candidate listing.
	Prompt func() string
}

var _ readline.Listener = (*Listener)(nil)

// OnChange implements readline.Listener.
func (l *Listener) OnChange(line []rune, pos int, key rune) ([]rune, int, bool) {
	if key != readline.CharTab {
		return nil, 0, false
	}

	buffer := string(line)
	action := l.Engine.Complete(buffer)
	switch action.Kind {
	case Bell:
		if l.Bell != nil {
			l.Bell()
		}
		return nil, 0, false

	case List:
		prompt := ""
		if l.Prompt != nil {
			prompt = l.Prompt()
		}
		fmt.Fprintf(l.Output, "%s%s\n%s\n", prompt, buffer, strings.Join(action.Candidates, "  "))
		return nil, 0, false

	default:
		newLine := []rune(action.Apply(buffer))
		return newLine, len(newLine), true
	}
}

// NoCompleter is a readline.AutoCompleter that never offers candidates. It
// stops readline's own Tab handling so the key reaches a Listener.
type NoCompleter struct{}

var _ readline.AutoCompleter = NoCompleter{}

// Do implements readline.AutoCompleter.
func (NoCompleter) Do([]rune, int) ([][]rune, int) {
	return nil, 0
}
