// Package shell turns a line of input into a pipeline of commands.
//
// The steps loosely follow the POSIX shell command language:
// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/V3_chap02.html
//
//  1. The input is broken into words, honoring quotes and escapes (Tokenize).
//  2. The words are split into commands on the pipe operator.
//  3. Redirection operators and their operands are removed from each
//     command's parameter list (ExtractRedirects).
//
// Expansions, compound commands and functions are not supported.
package shell

import (
	"errors"
	"fmt"
)

// PipeOperator separates the stages of a pipeline.
const PipeOperator = "|"

var (
	// ErrUnclosedQuote is returned when the input ends inside a quote.
	ErrUnclosedQuote = errors.New("unclosed quote")
	// ErrEmptyStage is returned for a pipeline with a missing command.
	ErrEmptyStage = errors.New("empty pipeline stage")
	// ErrMissingTarget is returned for a redirect without a file name.
	ErrMissingTarget = errors.New("missing redirect target")
)

// SyntaxError is returned for input that can't be parsed. Msg is the
// message shown to the user and Err is the sentinel describing the cause.
type SyntaxError struct {
	Msg string
	Err error
}

func (e *SyntaxError) Error() string {
	return e.Msg
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// Stage is a single command within a pipeline.
type Stage struct {
	// Args holds the command name followed by its arguments, it's never empty.
	Args []string
	// Redirects holds the command's output redirections.
	Redirects Redirects
}

// Name returns the command name.
func (s Stage) Name() string {
	return s.Args[0]
}

// Pipeline is an ordered list of commands, the output of each feeding the
// input of the next.
type Pipeline []Stage

// Parse parses a line into a pipeline. A blank line produces an empty
// pipeline and no error.
func Parse(line string) (Pipeline, error) {
	tokens, err := Tokenize(line)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}
	// A pipe is gone once the line is split, so targets are checked first.
	for i, tok := range tokens[:len(tokens)-1] {
		if isRedirectOperator(tok) && tokens[i+1].IsOperator(PipeOperator) {
			return nil, &SyntaxError{
				Msg: fmt.Sprintf("syntax error near unexpected token `%s'", PipeOperator),
				Err: ErrMissingTarget,
			}
		}
	}

	var pipeline Pipeline
	for _, stageTokens := range SplitPipeline(tokens) {
		args, redirects, err := ExtractRedirects(stageTokens)
		if err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return nil, &SyntaxError{
				Msg: fmt.Sprintf("syntax error near unexpected token `%s'", PipeOperator),
				Err: ErrEmptyStage,
			}
		}
		pipeline = append(pipeline, Stage{Args: args, Redirects: redirects})
	}

	return pipeline, nil
}

// SplitPipeline splits tokens on every unquoted pipe operator. Leading,
// trailing and doubled operators produce empty groups.
func SplitPipeline(tokens []Token) [][]Token {
	var (
		stages  [][]Token
		current []Token
	)
	for _, tok := range tokens {
		if tok.IsOperator(PipeOperator) {
			stages = append(stages, current)
			current = nil
			continue
		}
		current = append(current, tok)
	}
	return append(stages, current)
}
