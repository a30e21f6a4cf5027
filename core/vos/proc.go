package vos

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
)

const (
	// StatusNotFound is the exit status of a command that couldn't be found.
	StatusNotFound = 127
	// StatusCannotExecute is the exit status of a command that was found but
	// couldn't be started.
	StatusCannotExecute = 126
)

// ExecError is returned when a command can't be started.
type ExecError struct {
	Name string
	Err  error
}

func (e *ExecError) Error() string {
	if errors.Is(e.Err, ErrNotFound) {
		return fmt.Sprintf("%s: command not found", e.Name)
	}
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Status returns the exit status the shell reports for the error.
func (e *ExecError) Status() int {
	if errors.Is(e.Err, ErrNotFound) {
		return StatusNotFound
	}
	return StatusCannotExecute
}

// Spawner starts commands as either in-process programs or OS processes.
type Spawner struct {
	// Dir is the working directory of started processes.
	Dir string
	// Env holds the environment of started processes, PATH is read from it.
	Env []string
	// Resolve looks up in-process programs, it may be nil.
	Resolve ProcessResolver
	// OnStartError is called by RunPipeline with the arguments of each stage
	// that couldn't be started, it may be nil.
	OnStartError func(args []string, err error)
}

// Start launches the command with the given streams.
func (sp *Spawner) Start(args []string, stdio VIO) (Process, error) {
	return sp.start(args, stdio, nil)
}

// start launches the command. On success the owned closers belong to the new
// process: an OS process holds its own copies so they're closed right away,
// an in-process program closes them when it returns. On failure they're left
// to the caller.
func (sp *Spawner) start(args []string, stdio VIO, owned []io.Closer) (Process, error) {
	if len(args) == 0 {
		return nil, &ExecError{Name: "", Err: ErrNotFound}
	}

	if sp.Resolve != nil {
		if fn := sp.Resolve(args[0]); fn != nil {
			return startFunc(fn, args, stdio, owned), nil
		}
	}

	env := NewMapEnvFromEnvList(sp.Env)
	path, err := LookPath(env.Getenv(EnvPath), sp.Dir, args[0])
	if err != nil {
		return nil, &ExecError{Name: args[0], Err: err}
	}

	cmd := &exec.Cmd{
		Path:   Resolve(sp.Dir, path),
		Args:   args,
		Env:    sp.Env,
		Dir:    sp.Dir,
		Stdin:  unwrapReader(stdio.Stdin()),
		Stdout: unwrapWriter(stdio.Stdout()),
		Stderr: unwrapWriter(stdio.Stderr()),
	}
	if err := cmd.Start(); err != nil {
		return nil, &ExecError{Name: args[0], Err: err}
	}
	closeAll(owned)

	return &osProcess{cmd: cmd}, nil
}

type osProcess struct {
	cmd *exec.Cmd
}

func (p *osProcess) Wait() int {
	// The exit status is taken from the process state, errors copying
	// non-file streams don't change it.
	_ = p.cmd.Wait()
	return ExitStatus(p.cmd.ProcessState)
}

// ExitStatus converts the state of an exited process to a shell exit status,
// processes killed by a signal report 128 plus the signal number.
func ExitStatus(state *os.ProcessState) int {
	if state == nil {
		return StatusCannotExecute
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}

type funcProcess struct {
	done   chan struct{}
	status int
}

func startFunc(fn ProcessFunc, args []string, stdio VIO, owned []io.Closer) *funcProcess {
	proc := &funcProcess{done: make(chan struct{})}
	go func() {
		defer close(proc.done)
		// Closing the write end of a pipe is what signals EOF downstream.
		defer closeAll(owned)
		proc.status = fn(args, stdio)
	}()
	return proc
}

func (p *funcProcess) Wait() int {
	<-p.done
	return p.status
}

// ExitedProcess is a process that has already finished with the given
// status.
type ExitedProcess int

func (p ExitedProcess) Wait() int {
	return int(p)
}
