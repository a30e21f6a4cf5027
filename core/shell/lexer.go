package shell

import (
	"strings"
	"unicode"
)

// Token is a single word of shell input.
type Token struct {
	// Text holds the word with quotes and escapes removed.
	Text string
	// Quoted is set if any part of the word was quoted or escaped. Quoted
	// words are never treated as operators.
	Quoted bool
}

// IsOperator reports whether the token is the unquoted operator op.
func (t Token) IsOperator(op string) bool {
	return !t.Quoted && t.Text == op
}

type lexState int

const (
	lexOutside lexState = iota
	lexSingleQuote
	lexDoubleQuote
)

// doubleQuoteEscapes are the only characters a backslash escapes within
// double quotes.
const doubleQuoteEscapes = "\"\\$`"

// Tokenize splits a line into words, removing quotes and escapes.
//
// Single quotes preserve every character up to the closing quote. Double
// quotes preserve everything except backslash sequences for ", \, $ and `.
// Outside of quotes a backslash escapes the following character. Runs of
// unquoted whitespace separate words.
//
// An unterminated quote is reported as a *SyntaxError wrapping
// ErrUnclosedQuote.
func Tokenize(line string) ([]Token, error) {
	var (
		tokens  []Token
		word    strings.Builder
		inWord  bool
		quoted  bool
		state   = lexOutside
		runes   = []rune(line)
		opening rune
	)

	flush := func() {
		if inWord {
			tokens = append(tokens, Token{Text: word.String(), Quoted: quoted})
		}
		word.Reset()
		inWord = false
		quoted = false
	}

	for i := 0; i < len(runes); i++ {
		ch := runes[i]

		switch state {
		case lexSingleQuote:
			if ch == '\'' {
				state = lexOutside
				continue
			}
			word.WriteRune(ch)

		case lexDoubleQuote:
			switch {
			case ch == '"':
				state = lexOutside
			case ch == '\\' && i+1 < len(runes) && strings.ContainsRune(doubleQuoteEscapes, runes[i+1]):
				i++
				word.WriteRune(runes[i])
			default:
				word.WriteRune(ch)
			}

		default:
			switch {
			case unicode.IsSpace(ch):
				flush()
			case ch == '\'' || ch == '"':
				if ch == '\'' {
					state = lexSingleQuote
				} else {
					state = lexDoubleQuote
				}
				opening = ch
				inWord = true
				quoted = true
			case ch == '\\' && i+1 < len(runes):
				i++
				word.WriteRune(runes[i])
				inWord = true
				quoted = true
			default:
				// A trailing backslash has nothing to escape and is kept.
				word.WriteRune(ch)
				inWord = true
			}
		}
	}

	if state != lexOutside {
		return nil, &SyntaxError{
			Msg: "unexpected EOF while looking for matching `" + string(opening) + "'",
			Err: ErrUnclosedQuote,
		}
	}

	flush()
	return tokens, nil
}

// Words returns the text of each token.
func Words(tokens []Token) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, tok.Text)
	}
	return out
}
