// Package history keeps the lines entered into a shell session and persists
// them to history files.
package history

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/afero"
)

// Entry is a numbered history line, numbering starts at 1.
type Entry struct {
	Index int
	Line  string
}

// History is the ordered list of lines entered in a session. It also tracks
// how many entries have been appended to a history file so repeated appends
// never write a line twice.
type History struct {
	fs      afero.Fs
	entries []string
	// appended is the number of leading entries already appended to a file.
	appended int
}

// New creates an empty history that reads and writes files through fs.
func New(fs afero.Fs) *History {
	return &History{fs: fs}
}

// Add appends a line to the history.
func (h *History) Add(line string) {
	h.entries = append(h.entries, line)
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Last returns the last n entries, or all of them if n is larger than the
// history. Negative values of n are treated as 0.
func (h *History) Last(n int) []Entry {
	if n < 0 {
		n = 0
	}
	start := len(h.entries) - n
	if start < 0 {
		start = 0
	}

	out := make([]Entry, 0, len(h.entries)-start)
	for i := start; i < len(h.entries); i++ {
		out = append(out, Entry{Index: i + 1, Line: h.entries[i]})
	}
	return out
}

// All returns every entry.
func (h *History) All() []Entry {
	return h.Last(len(h.entries))
}

// Clone returns an independent copy of the history.
func (h *History) Clone() *History {
	return &History{
		fs:       h.fs,
		entries:  append([]string(nil), h.entries...),
		appended: h.appended,
	}
}

// ReadFile appends every non-empty line of the file to the history.
func (h *History) ReadFile(name string) error {
	fd, err := h.fs.Open(name)
	if err != nil {
		return err
	}
	defer fd.Close()

	scanner := bufio.NewScanner(fd)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			h.Add(line)
		}
	}
	return scanner.Err()
}

// Load reads the file like ReadFile and marks everything read as already
// appended, so a later AppendFile only writes lines from this session.
func (h *History) Load(name string) error {
	if err := h.ReadFile(name); err != nil {
		return err
	}
	h.appended = len(h.entries)
	return nil
}

// WriteFile replaces the file's contents with the full history.
func (h *History) WriteFile(name string) error {
	return h.writeEntries(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, h.entries)
}

// AppendFile appends the entries added since the last append, or since the
// history was loaded, to the file.
func (h *History) AppendFile(name string) error {
	if err := h.writeEntries(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, h.entries[h.appended:]); err != nil {
		return err
	}
	h.appended = len(h.entries)
	return nil
}

func (h *History) writeEntries(name string, flag int, entries []string) error {
	fd, err := h.fs.OpenFile(name, flag, 0600)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(fd)
	for _, line := range entries {
		if _, err := fmt.Fprintln(w, line); err != nil {
			fd.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		fd.Close()
		return err
	}
	return fd.Close()
}
