// Package vos holds the shell's view of the operating system: its
// environment, standard streams and the processes it starts.
package vos

import "io"

// VIO holds the standard streams of a process.
type VIO interface {
	Stdin() io.ReadCloser
	Stdout() io.WriteCloser
	Stderr() io.WriteCloser
}

// ProcessFunc is a program that runs inside the shell process, such as a
// builtin. It returns the exit status.
type ProcessFunc func(args []string, stdio VIO) int

// ProcessResolver returns the in-process program for the given command name,
// or nil if the name should be looked up on the PATH.
type ProcessResolver func(name string) ProcessFunc

// Process is a started command.
type Process interface {
	// Wait blocks until the process exits and returns its exit status.
	Wait() int
}
