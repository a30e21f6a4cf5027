package commands

import (
	"fmt"
	"strings"
)

// Echo prints its arguments separated by spaces. Quoting and escapes were
// already resolved when the line was parsed so nothing is interpreted.
func Echo(s *Shell, args []string) int {
	fmt.Fprintln(s.Stdout(), strings.Join(args[1:], " "))
	return 0
}

func init() {
	mustAddBuiltin("echo", Echo)
}
