package shell

import (
	"fmt"
	"os"
)

// Stream identifies an output stream of a command by its file descriptor.
type Stream int

const (
	Stdout Stream = 1
	Stderr Stream = 2
)

func (s Stream) String() string {
	switch s {
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return fmt.Sprintf("fd%d", int(s))
	}
}

// Mode controls how a redirect target is opened.
type Mode int

const (
	Truncate Mode = iota
	Append
)

// Redirect sends a command's stream to a file.
type Redirect struct {
	Stream Stream
	Mode   Mode
	Path   string
}

// OpenFlags returns the os.OpenFile flags for the redirect target.
func (r Redirect) OpenFlags() int {
	if r.Mode == Append {
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	return os.O_WRONLY | os.O_CREATE | os.O_TRUNC
}

// Redirects holds at most one Redirect per stream.
type Redirects []Redirect

// Set adds the redirect, replacing any earlier redirect of the same stream.
func (rs *Redirects) Set(r Redirect) {
	for i := range *rs {
		if (*rs)[i].Stream == r.Stream {
			(*rs)[i] = r
			return
		}
	}
	*rs = append(*rs, r)
}

// Get returns the redirect for the stream, if any.
func (rs Redirects) Get(stream Stream) (Redirect, bool) {
	for _, r := range rs {
		if r.Stream == stream {
			return r, true
		}
	}
	return Redirect{}, false
}

var redirectOperators = map[string]Redirect{
	">":   {Stream: Stdout, Mode: Truncate},
	"1>":  {Stream: Stdout, Mode: Truncate},
	">>":  {Stream: Stdout, Mode: Append},
	"1>>": {Stream: Stdout, Mode: Append},
	"2>":  {Stream: Stderr, Mode: Truncate},
	"2>>": {Stream: Stderr, Mode: Append},
}

func isRedirectOperator(tok Token) bool {
	if tok.Quoted {
		return false
	}
	_, ok := redirectOperators[tok.Text]
	return ok
}

func isOperator(tok Token) bool {
	return tok.IsOperator(PipeOperator) || isRedirectOperator(tok)
}

// ExtractRedirects removes redirection operators and their targets from the
// tokens of a single command. The remaining words keep their relative order.
// When a stream is redirected more than once the last redirect wins.
func ExtractRedirects(tokens []Token) ([]string, Redirects, error) {
	var (
		args      []string
		redirects Redirects
	)

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if !isRedirectOperator(tok) {
			args = append(args, tok.Text)
			continue
		}

		if i+1 >= len(tokens) {
			return nil, nil, &SyntaxError{Msg: "syntax error near unexpected token `newline'", Err: ErrMissingTarget}
		}
		target := tokens[i+1]
		if isOperator(target) {
			return nil, nil, &SyntaxError{Msg: fmt.Sprintf("syntax error near unexpected token `%s'", target.Text), Err: ErrMissingTarget}
		}

		redirect := redirectOperators[tok.Text]
		redirect.Path = target.Text
		redirects.Set(redirect)
		i++
	}

	return args, redirects, nil
}
