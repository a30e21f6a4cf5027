package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/abiosoft/readline"
	"github.com/josephlewis42/tinysh/core/complete"
	"github.com/josephlewis42/tinysh/core/config"
	"github.com/josephlewis42/tinysh/core/history"
	"github.com/josephlewis42/tinysh/core/logger"
	"github.com/josephlewis42/tinysh/core/shell"
	"github.com/josephlewis42/tinysh/core/vos"
	"github.com/spf13/afero"
)

const (
	// ShellName prefixes the shell's own diagnostics.
	ShellName     = "tinysh"
	DefaultPrompt = `\$ `
	EnvPWD        = "PWD"
	// EnvSessionID links a shell started by the server to the server's event
	// log session.
	EnvSessionID = "TINYSH_SESSION_ID"
	// StatusSyntaxError is the exit status of a line that couldn't be parsed.
	StatusSyntaxError = 2
)

// Shell is a command interpreter session. All of its state belongs to the
// session: the working directory is tracked in Dir rather than the process
// so pipeline builtins can run on a forked copy.
type Shell struct {
	// Dir is the absolute working directory.
	Dir string
	Env *vos.MapEnv
	// History holds the lines entered in interactive mode.
	History *history.History
	// Events receives session events, nil discards them.
	Events *logger.SessionLogger
	// Prompt is shown before each interactive line. \w expands to the working
	// directory and \$ to $; backslash escapes like \033 are interpreted.
	Prompt string
	Color  *ColorPrinter

	stdio   vos.VIO
	lastRet int

	// subshell is set on forks that run pipeline stages.
	subshell bool
	// exited is set by the exit builtin.
	exited bool

	// recall receives history entries for the line editor's Up arrow.
	recall func(line string)
	// recalled is the number of history entries passed to recall.
	recalled int
}

// NewShell creates a shell reading and writing stdio, starting in dir with
// the given environment.
func NewShell(stdio vos.VIO, dir string, environ []string) *Shell {
	return &Shell{
		Dir:     dir,
		Env:     vos.NewMapEnvFromEnvList(environ),
		History: history.New(afero.NewOsFs()),
		Prompt:  DefaultPrompt,
		Color:   &ColorPrinter{Mode: config.ColorAuto, Output: stdio.Stdout()},
		stdio:   stdio,
	}
}

// Configure applies user configuration to the shell.
func (s *Shell) Configure(cfg *config.Configuration) {
	s.Prompt = cfg.Prompt
	s.Color.Mode = cfg.Color

	// The environment takes precedence.
	if histFile := cfg.HistoryFilePath(); histFile != "" {
		if _, ok := s.Env.LookupEnv(vos.EnvHistFile); !ok {
			s.Env.Setenv(vos.EnvHistFile, histFile)
		}
	}
}

// Stdin returns the shell's current input.
func (s *Shell) Stdin() io.Reader {
	return s.stdio.Stdin()
}

// Stdout returns the shell's current output, which redirects may rebind.
func (s *Shell) Stdout() io.Writer {
	return s.stdio.Stdout()
}

// Stderr returns the shell's current error output.
func (s *Shell) Stderr() io.Writer {
	return s.stdio.Stderr()
}

// Exited returns true once the exit builtin ran.
func (s *Shell) Exited() bool {
	return s.exited
}

// resolve returns the absolute form of a path relative to the working
// directory.
func (s *Shell) resolve(path string) string {
	return vos.Resolve(s.Dir, path)
}

// LoadHistory appends the contents of HISTFILE to the history and marks
// them as already written. A missing file isn't an error.
func (s *Shell) LoadHistory() error {
	name := s.Env.Getenv(vos.EnvHistFile)
	if name == "" {
		return nil
	}

	err := s.History.Load(s.resolve(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// SaveHistory overwrites HISTFILE with the history if it's set.
func (s *Shell) SaveHistory() error {
	name := s.Env.Getenv(vos.EnvHistFile)
	if name == "" {
		return nil
	}
	return s.History.WriteFile(s.resolve(name))
}

func (s *Shell) printError(err error) {
	fmt.Fprintf(s.Stderr(), "%s %v\n", s.Color.Sprintf(ColorBoldRed, "%s:", ShellName), err)
}

// RunCommand runs a single line and returns its exit status.
func (s *Shell) RunCommand(line string) int {
	pipeline, err := shell.Parse(line)
	if err != nil {
		s.printError(err)
		s.lastRet = StatusSyntaxError
		return s.lastRet
	}

	switch len(pipeline) {
	case 0:
		return s.lastRet
	case 1:
		s.lastRet = s.runSimple(pipeline[0])
	default:
		s.lastRet = s.runPipeline(pipeline)
	}

	s.Events.RecordCommand(line, s.lastRet)
	return s.lastRet
}

// runLine runs a line read from the user, recording it in the history.
func (s *Shell) runLine(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}

	s.History.Add(line)
	s.RunCommand(line)
	s.syncRecall()
}

// syncRecall passes the history entries added since the last call, including
// ones read by history -r, to recall.
func (s *Shell) syncRecall() {
	if s.recall == nil {
		return
	}
	for _, entry := range s.History.Last(s.History.Len() - s.recalled) {
		s.recall(entry.Line)
	}
	s.recalled = s.History.Len()
}

// redirect rebinds the shell's streams until the returned function is called,
// which also closes the redirect targets.
func (s *Shell) redirect(stdio vos.VIO, files []io.Closer) (restore func()) {
	saved := s.stdio
	s.stdio = stdio
	return func() {
		s.stdio = saved
		for _, f := range files {
			f.Close()
		}
	}
}

func (s *Shell) spawner() *vos.Spawner {
	return &vos.Spawner{
		Dir: s.Dir,
		Env: s.Env.Environ(),
	}
}

// runSimple runs a command that isn't part of a pipeline. Builtins run
// in-process so they can change the session.
func (s *Shell) runSimple(stage shell.Stage) int {
	stdio, files, err := vos.OpenRedirects(s.Dir, stage.Redirects, s.stdio)
	if err != nil {
		s.printError(err)
		return 1
	}
	defer s.redirect(stdio, files)()

	if builtin, ok := AllBuiltins[stage.Name()]; ok {
		return builtin.Main(s, stage.Args)
	}

	proc, err := s.spawner().Start(stage.Args, s.stdio)
	if err != nil {
		return s.reportExecError(stage.Args, err)
	}
	return proc.Wait()
}

func (s *Shell) reportExecError(args []string, err error) int {
	var execErr *vos.ExecError
	if !errors.As(err, &execErr) {
		s.printError(err)
		return 1
	}

	fmt.Fprintln(s.Stderr(), execErr)
	s.Events.RecordUnknownCommand(args, err)
	return execErr.Status()
}

// runPipeline runs every stage concurrently. Builtin stages run against a
// fork of the session so they can't change it.
func (s *Shell) runPipeline(pipeline shell.Pipeline) int {
	sp := s.spawner()
	sp.Resolve = func(name string) vos.ProcessFunc {
		builtin, ok := AllBuiltins[name]
		if !ok {
			return nil
		}

		forked := s.fork()
		return func(args []string, stdio vos.VIO) int {
			forked.stdio = stdio
			return builtin.Main(forked, args)
		}
	}

	sp.OnStartError = func(args []string, err error) {
		var execErr *vos.ExecError
		if errors.As(err, &execErr) {
			s.Events.RecordUnknownCommand(args, err)
		}
	}

	status, err := sp.RunPipeline(pipeline, s.stdio)
	if err != nil {
		s.printError(err)
	}
	return status
}

// fork copies the session for a pipeline stage.
func (s *Shell) fork() *Shell {
	return &Shell{
		Dir:      s.Dir,
		Env:      s.Env.Clone(),
		History:  s.History.Clone(),
		Events:   s.Events,
		Prompt:   s.Prompt,
		Color:    s.Color,
		stdio:    s.stdio,
		lastRet:  s.lastRet,
		subshell: true,
	}
}

// RunScript runs each line read from r until the input ends or the shell
// exits. Lines are recorded in the history.
func (s *Shell) RunScript(r io.Reader) int {
	reader := bufio.NewReader(r)
	for !s.exited {
		line, err := reader.ReadString('\n')
		if line != "" {
			s.runLine(strings.TrimRight(line, "\r\n"))
		}

		switch {
		case err == io.EOF:
			return 0
		case err != nil:
			s.printError(err)
			return 1
		}
	}
	return 0
}

// RunInteractive reads lines from the shell's input until it ends or the
// shell exits. A terminal gets a line editor with completion, other inputs
// are read as a script.
func (s *Shell) RunInteractive() int {
	if !isTerminal(s.stdio.Stdin()) {
		return s.RunScript(s.stdio.Stdin())
	}

	listener := &complete.Listener{
		Engine: complete.NewEngine(BuiltinNames(), s.eachExecutable),
		Prompt: s.prompt,
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt: s.prompt(),
		Stdin:  s.stdio.Stdin(),
		Stdout: s.stdio.Stdout(),
		Stderr: s.stdio.Stderr(),
		// Tab is handled by the listener.
		AutoComplete: complete.NoCompleter{},
		Listener:     listener,
		// The recall list is fed from History.
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		s.printError(err)
		return 1
	}
	defer rl.Close()

	s.recall = func(line string) { rl.SaveHistory(line) }
	defer func() { s.recall = nil }()
	s.syncRecall()

	listener.Bell = rl.Terminal.Bell
	listener.Output = rl.Stdout()

	for !s.exited {
		rl.SetPrompt(s.prompt())
		line, err := rl.Readline()

		switch {
		case err == io.EOF:
			return 0 // Input closed, quit.
		case err == readline.ErrInterrupt:
			// Interrupt clears line.
			continue
		case err != nil:
			s.printError(err)
			return 1
		default:
			s.runLine(line)
		}
	}
	return 0
}

func (s *Shell) eachExecutable(f func(name string)) {
	vos.EachExecutable(s.Env.Getenv(vos.EnvPath), s.Dir, f)
}

func (s *Shell) prompt() string {
	prompt := s.Prompt

	dir := s.Dir
	if home := s.Env.Getenv(vos.EnvHome); home != "" && (dir == home || strings.HasPrefix(dir, home+"/")) {
		dir = "~" + strings.TrimPrefix(dir, home)
	}
	prompt = strings.ReplaceAll(prompt, `\w`, dir)
	prompt = strings.ReplaceAll(prompt, `\$`, "$")

	return s.Color.Sprintf(ColorBoldGreen, "%s", unescape(prompt))
}
