package commands

import (
	"fmt"
	"strconv"
)

// History lists or persists the session's history.
//
//	history          every entry with its 1-based index
//	history N        the last N entries
//	history -r FILE  append the non-empty lines of FILE
//	history -w FILE  overwrite FILE with every entry
//	history -a FILE  append the entries added since the last -a or since the
//	                 history was loaded
func History(s *Shell, args []string) int {
	// A count may be negative so it's read before option parsing.
	if len(args) == 2 {
		if n, err := strconv.Atoi(args[1]); err == nil {
			if n < 0 {
				n = 0
			}
			printHistory(s, n)
			return 0
		}
	}

	cmd := &SimpleCommand{
		Use:   "history [N] | -r FILE | -w FILE | -a FILE",
		Short: "Display or manipulate the history list.",
	}
	opts := cmd.Flags()
	readFile := opts.String('r', "", "append the contents of FILE to the history", "FILE")
	writeFile := opts.String('w', "", "write the history to FILE", "FILE")
	appendFile := opts.String('a', "", "append new history entries to FILE", "FILE")

	return cmd.Run(args, s.stdio, func() int {
		switch {
		case *readFile != "":
			// Unreadable files are skipped silently.
			if err := s.History.ReadFile(s.resolve(*readFile)); err != nil {
				return 1
			}
		case *writeFile != "":
			if err := s.History.WriteFile(s.resolve(*writeFile)); err != nil {
				fmt.Fprintf(s.Stderr(), "History cannot write to %s\n", *writeFile)
				return 1
			}
		case *appendFile != "":
			if err := s.History.AppendFile(s.resolve(*appendFile)); err != nil {
				fmt.Fprintf(s.Stderr(), "History cannot write to %s\n", *appendFile)
				return 1
			}
		case opts.NArgs() > 0:
			fmt.Fprintf(s.Stderr(), "history: %s: numeric argument required\n", opts.Arg(0))
			return 1
		default:
			printHistory(s, s.History.Len())
		}
		return 0
	})
}

func printHistory(s *Shell, n int) {
	for _, entry := range s.History.Last(n) {
		fmt.Fprintf(s.Stdout(), "%5d  %s\n", entry.Index, entry.Line)
	}
}

func init() {
	mustAddBuiltin("history", History)
}
