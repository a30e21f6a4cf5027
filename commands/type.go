package commands

import (
	"fmt"

	"github.com/josephlewis42/tinysh/core/vos"
)

// Type reports whether each name is a builtin or the executable it resolves
// to on the PATH.
func Type(s *Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "type NAME...",
		Short: "Display information about command type.",
	}

	if len(args) < 2 {
		fmt.Fprintln(s.Stderr(), "type: missing argument")
		return 1
	}

	return cmd.RunEachArg(args, s.stdio, func(name string) error {
		if IsBuiltin(name) {
			fmt.Fprintf(s.Stdout(), "%s is a shell builtin\n", name)
			return nil
		}

		path, err := vos.LookPath(s.Env.Getenv(vos.EnvPath), s.Dir, name)
		if err != nil {
			return fmt.Errorf("%s: not found", name)
		}
		fmt.Fprintf(s.Stdout(), "%s is %s\n", name, s.resolve(path))
		return nil
	})
}

func init() {
	mustAddBuiltin("type", Type)
}
