package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/josephlewis42/tinysh/core/vos"
)

// Cd changes the session's working directory. A leading ~ is replaced by
// $HOME; ~user isn't supported. On failure the directory is unchanged.
func Cd(s *Shell, args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(s.Stderr(), "cd: missing argument")
		return 1
	}

	target := args[1]
	if target == "~" || strings.HasPrefix(target, "~/") {
		home := s.Env.Getenv(vos.EnvHome)
		if home == "" {
			fmt.Fprintln(s.Stderr(), "cd: HOME not set")
			return 1
		}
		target = home + strings.TrimPrefix(target, "~")
	}

	dir := s.resolve(target)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		fmt.Fprintf(s.Stderr(), "cd: %s: No such file or directory\n", args[1])
		return 1
	}

	s.Dir = dir
	s.Env.Setenv(EnvPWD, dir)
	return 0
}

func init() {
	mustAddBuiltin("cd", Cd)
}
