package commands

import (
	"fmt"

	"github.com/josephlewis42/tinysh/core/vos"
)

// Exit saves the history to HISTFILE and ends the session with status 0.
// Arguments are ignored. In a pipeline stage it only ends that stage.
func Exit(s *Shell, args []string) int {
	if !s.subshell {
		if err := s.SaveHistory(); err != nil {
			fmt.Fprintf(s.Stderr(), "History cannot write to %s\n", s.Env.Getenv(vos.EnvHistFile))
		}
	}

	s.exited = true
	return 0
}

func init() {
	mustAddBuiltin("exit", Exit)
}
