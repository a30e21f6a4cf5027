package core

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/anmitsu/go-shlex"
	"github.com/creack/pty"
	"github.com/gliderlabs/ssh"
	"github.com/josephlewis42/tinysh/commands"
	"github.com/josephlewis42/tinysh/core/config"
	"github.com/josephlewis42/tinysh/core/logger"
	"github.com/josephlewis42/tinysh/core/ttylog"
	"github.com/josephlewis42/tinysh/core/vos"
	"github.com/juju/ratelimit"
	gossh "golang.org/x/crypto/ssh"
)

// HistoryFileName is the name of the history file in a session's home.
const HistoryFileName = ".tinysh_history"

type sshContextKey struct {
	name string
}

var (
	// ContextSessionLogger holds the session's event logger, it's created
	// when the client authenticates.
	ContextSessionLogger = sshContextKey{"session-logger"}
)

// Server runs the shell for clients connecting over SSH. Every session gets
// its own temporary home directory which is removed when it ends.
type Server struct {
	configuration *config.Configuration
	events        *logger.Logger
	sshServer     *ssh.Server
}

// NewServer creates a server from the configuration, events are written to
// the given logger.
func NewServer(configuration *config.Configuration, events *logger.Logger) (*Server, error) {
	server := &Server{
		configuration: configuration,
		events:        events,
	}

	server.sshServer = &ssh.Server{
		Addr:            fmt.Sprintf(":%d", configuration.SSH.Port),
		Handler:         server.HandleSession,
		PasswordHandler: server.checkPassword,
		IdleTimeout:     configuration.SSH.IdleTimeout.Duration,
	}

	pemBytes, err := configuration.PrivateKeyPem()
	if err != nil {
		return nil, fmt.Errorf("reading host key: %w", err)
	}
	signer, err := gossh.ParsePrivateKey(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing host key: %w", err)
	}
	server.sshServer.AddHostKey(signer)

	return server, nil
}

// checkPassword compares the password against the access key, an empty
// access key lets everyone in.
func (s *Server) checkPassword(ctx ssh.Context, password string) bool {
	sessionLogger := s.sessionLogger(ctx)

	accessKey := s.configuration.SSH.AccessKey
	ok := accessKey == "" || subtle.ConstantTimeCompare([]byte(password), []byte(accessKey)) == 1
	sessionLogger.RecordLogin(ctx.User(), ctx.RemoteAddr().String(), ok)
	return ok
}

func (s *Server) sessionLogger(ctx ssh.Context) *logger.SessionLogger {
	if existing, ok := ctx.Value(ContextSessionLogger).(*logger.SessionLogger); ok {
		return existing
	}

	sessionLogger := s.events.NewSession()
	ctx.SetValue(ContextSessionLogger, sessionLogger)
	return sessionLogger
}

// HandleSession runs the shell for one SSH session and reports its exit
// status to the client.
func (s *Server) HandleSession(sess ssh.Session) {
	sessionLogger := s.sessionLogger(sess.Context())

	status, err := s.runSession(sess, sessionLogger)
	if err != nil {
		log.Printf("session %s: %v", sessionLogger.SessionID(), err)
		fmt.Fprintln(sess.Stderr(), "tinysh: couldn't start session")
	}

	sessionLogger.RecordSessionEnd(status)
	sess.Exit(status)
}

func (s *Server) runSession(sess ssh.Session, sessionLogger *logger.SessionLogger) (int, error) {
	home, err := os.MkdirTemp(s.configuration.Path(s.configuration.SSH.SessionRoot), "tinysh-session-")
	if err != nil {
		return 1, err
	}
	defer os.RemoveAll(home)

	ptyReq, winch, isPty := sess.Pty()
	sessionLogger.RecordSessionStart(home, isPty)

	cmd, err := s.shellCommand()
	if err != nil {
		return 1, err
	}
	cmd.Dir = home
	cmd.Env = []string{
		vos.EnvHome + "=" + home,
		vos.EnvHistFile + "=" + filepath.Join(home, HistoryFileName),
		vos.EnvPath + "=" + os.Getenv(vos.EnvPath),
		commands.EnvSessionID + "=" + sessionLogger.SessionID(),
	}

	recording, err := s.createRecording(sessionLogger, ptyReq)
	if err != nil {
		return 1, err
	}
	defer recording.Close()

	recorder := ttylog.NewRecorder(vos.NewVIOAdapter(sess, s.throttle(sess), sess.Stderr()), recording.sink)
	defer recorder.Close()

	if !isPty {
		if raw := sess.RawCommand(); raw != "" {
			cmd.Args = append(cmd.Args, "-c", raw)
		}
		return runPiped(cmd, recorder)
	}

	cmd.Env = append(cmd.Env, "TERM="+ptyReq.Term)
	sessionLogger.RecordWindowChange(ptyReq.Term, ptyReq.Window.Width, ptyReq.Window.Height, true)

	tty, err := pty.StartWithSize(cmd, windowSize(ptyReq.Window))
	if err != nil {
		return 1, err
	}
	defer tty.Close()

	go func() {
		for window := range winch {
			if err := pty.Setsize(tty, windowSize(window)); err != nil {
				return
			}
			recorder.Resize(window.Width, window.Height)
			sessionLogger.RecordWindowChange(ptyReq.Term, window.Width, window.Height, true)
		}
	}()

	go io.Copy(tty, recorder.Stdin())
	// Reads fail once the shell and everything it started have exited.
	io.Copy(recorder.Stdout(), tty)

	cmd.Wait()
	return vos.ExitStatus(cmd.ProcessState), nil
}

// runPiped runs the command connected to stdio with pipes.
func runPiped(cmd *exec.Cmd, stdio vos.VIO) (int, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return 1, err
	}
	cmd.Stdout = stdio.Stdout()
	cmd.Stderr = stdio.Stderr()

	if err := cmd.Start(); err != nil {
		return 1, err
	}

	// The copy isn't waited for, clients may keep their input open after the
	// shell exits.
	go func() {
		io.Copy(stdin, stdio.Stdin())
		stdin.Close()
	}()

	cmd.Wait()
	return vos.ExitStatus(cmd.ProcessState), nil
}

// shellCommand builds the command that runs the shell. Without a configured
// shell this binary is started with the server's configuration.
func (s *Server) shellCommand() (*exec.Cmd, error) {
	if shell := strings.TrimSpace(s.configuration.SSH.Shell); shell != "" {
		args, err := shlex.Split(shell, true)
		if err != nil {
			return nil, fmt.Errorf("parsing shell %q: %w", shell, err)
		}
		if len(args) == 0 {
			return nil, errors.New("empty shell command")
		}
		return exec.Command(args[0], args[1:]...), nil
	}

	self, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return exec.Command(self, "--config", s.configuration.Dir()), nil
}

// throttle limits the rate output is sent to the client if configured.
func (s *Server) throttle(w io.Writer) io.Writer {
	rate := s.configuration.SSH.MaxOutputBytesPerSecond
	if rate <= 0 {
		return w
	}
	return ratelimit.Writer(w, ratelimit.NewBucketWithRate(float64(rate), rate))
}

type recording struct {
	file io.Closer
	sink ttylog.LogSink
}

func (r *recording) Close() error {
	return r.file.Close()
}

func (s *Server) createRecording(sessionLogger *logger.SessionLogger, ptyReq ssh.Pty) (*recording, error) {
	name := fmt.Sprintf("%s-%s.%s", time.Now().UTC().Format("20060102T150405Z"), sessionLogger.SessionID(), ttylog.AsciicastFileExt)
	fd, path, err := s.configuration.CreateRecording(name)
	if err != nil {
		return nil, fmt.Errorf("creating recording: %w", err)
	}
	sessionLogger.RecordRecording(path)

	header := ttylog.AsciicastHeader{
		Width:  ptyReq.Window.Width,
		Height: ptyReq.Window.Height,
		Title:  sessionLogger.SessionID(),
	}
	if ptyReq.Term != "" {
		header.Env = map[string]string{"TERM": ptyReq.Term}
	}

	return &recording{
		file: fd,
		sink: ttylog.NewAsciicastLogSink(fd, header),
	}, nil
}

func windowSize(window ssh.Window) *pty.Winsize {
	return &pty.Winsize{
		Cols: uint16(window.Width),
		Rows: uint16(window.Height),
	}
}

// ListenAndServe listens on the configured port.
func (s *Server) ListenAndServe() error {
	log.Printf("- Starting SSH server on %s\n", s.sshServer.Addr)
	return s.sshServer.ListenAndServe()
}

// Serve accepts connections on the listener.
func (s *Server) Serve(l net.Listener) error {
	return s.sshServer.Serve(l)
}

// Shutdown stops accepting connections and waits for the open ones to close
// or the context to be done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.sshServer.Shutdown(ctx)
}
