package commands

import (
	"fmt"
)

// Pwd prints the session's working directory.
func Pwd(s *Shell, args []string) int {
	fmt.Fprintln(s.Stdout(), s.Dir)
	return 0
}

func init() {
	mustAddBuiltin("pwd", Pwd)
}
