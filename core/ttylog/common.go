// Package ttylog records terminal sessions and plays them back.
package ttylog

import (
	"io"
	"log"
	"sync"
	"time"

	"github.com/josephlewis42/tinysh/core/vos"
)

// FD identifies the stream an IO event happened on.
type FD int

const (
	FDStdin FD = iota
	FDStdout
	FDStderr
)

func (fd FD) String() string {
	switch fd {
	case FDStdin:
		return "stdin"
	case FDStdout:
		return "stdout"
	case FDStderr:
		return "stderr"
	default:
		return "unknown"
	}
}

// IO is data read from or written to the terminal.
type IO struct {
	FD   FD
	Data []byte
}

// Resize is a change of the terminal window size.
type Resize struct {
	Width  int
	Height int
}

// TTYLogEntry is a single recorded event. Exactly one of IO, Resize or Close
// is set.
type TTYLogEntry struct {
	TimestampMicros int64

	IO     *IO
	Resize *Resize
	Close  bool
}

// LogSink receives log events.
type LogSink func(t *TTYLogEntry) error

// LogSource adapts log readers.
type LogSource interface {
	// Next fetches the next available log entry. It returns io.EOF if the
	// source has no more log entries.
	Next() (*TTYLogEntry, error)
}

// NewRealTimePlayback plays back the results in real-time.
// If maxSleep > 0, it's used as the maximum duration to pause.
func NewRealTimePlayback(maxSleep time.Duration, next LogSink) LogSink {
	return newPlayback(maxSleep, time.Sleep, next)
}

func newPlayback(maxSleep time.Duration, sleep func(time.Duration), next LogSink) LogSink {
	var once sync.Once
	var prevTimeMicros int64

	return func(logEntry *TTYLogEntry) error {
		once.Do(func() {
			prevTimeMicros = logEntry.TimestampMicros
		})

		delta := logEntry.TimestampMicros - prevTimeMicros
		prevTimeMicros = logEntry.TimestampMicros

		if maxSleep > 0 {
			sleepDuration := time.Duration(delta) * time.Microsecond
			if sleepDuration > maxSleep {
				sleepDuration = maxSleep
			}
			if sleepDuration > 0 {
				sleep(sleepDuration)
			}
		}

		return next(logEntry)
	}
}

// NewClientOutput writes stdout and stderr to the given writer
func NewClientOutput(w io.Writer) LogSink {
	return func(logEntry *TTYLogEntry) error {
		if event := logEntry.IO; event != nil && event.FD != FDStdin {
			if _, err := w.Write(event.Data); err != nil {
				return err
			}
		}
		return nil
	}
}

// Replay reads a stream of events to a callback.
func Replay(recording LogSource, callback LogSink) (err error) {
	for {
		logEntry, err := recording.Next()
		switch {
		case err == io.EOF:
			return nil
		case err != nil:
			return err
		}

		if err := callback(logEntry); err != nil {
			return err
		}
	}
}

// Recorder wraps a set of streams and forwards everything read from or
// written to them to a LogSink.
type Recorder struct {
	*vos.VIOAdapter
	mutex  sync.Mutex
	output LogSink
	now    func() time.Time
}

var _ vos.VIO = (*Recorder)(nil)

func (r *Recorder) record(entry *TTYLogEntry) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	entry.TimestampMicros = r.now().UnixMicro()
	if err := r.output(entry); err != nil {
		log.Print(err)
	}
}

func (r *Recorder) recordIO(mockFd FD, data []byte) {
	// The caller may reuse its buffer.
	r.record(&TTYLogEntry{IO: &IO{FD: mockFd, Data: append([]byte(nil), data...)}})
}

// Resize records a change of the window size.
func (r *Recorder) Resize(width, height int) {
	r.record(&TTYLogEntry{Resize: &Resize{Width: width, Height: height}})
}

// Close records the end of the session. It doesn't close the wrapped
// streams.
func (r *Recorder) Close() error {
	r.record(&TTYLogEntry{Close: true})
	return nil
}

type recorderReadCloser struct {
	r       *Recorder
	mockFd  FD
	wrapped io.ReadCloser
}

var _ io.ReadCloser = (*recorderReadCloser)(nil)

func (rc *recorderReadCloser) Read(p []byte) (int, error) {
	n, err := rc.wrapped.Read(p)
	if n > 0 {
		rc.r.recordIO(rc.mockFd, p[:n])
	}
	return n, err
}

func (rc *recorderReadCloser) Close() error {
	return rc.wrapped.Close()
}

type recorderWriteCloser struct {
	r       *Recorder
	mockFd  FD
	wrapped io.WriteCloser
}

var _ io.WriteCloser = (*recorderWriteCloser)(nil)

func (rc *recorderWriteCloser) Write(p []byte) (int, error) {
	n, err := rc.wrapped.Write(p)
	if n > 0 {
		rc.r.recordIO(rc.mockFd, p[:n])
	}
	return n, err
}

func (rc *recorderWriteCloser) Close() error {
	return rc.wrapped.Close()
}

// NewRecorder creates a logger that forwards all events to output.
func NewRecorder(toWrap vos.VIO, output LogSink) *Recorder {
	recorder := &Recorder{
		output: output,
		now:    time.Now,
	}

	recorder.VIOAdapter = vos.NewVIOAdapter(
		&recorderReadCloser{mockFd: FDStdin, r: recorder, wrapped: toWrap.Stdin()},
		&recorderWriteCloser{mockFd: FDStdout, r: recorder, wrapped: toWrap.Stdout()},
		&recorderWriteCloser{mockFd: FDStderr, r: recorder, wrapped: toWrap.Stderr()},
	)

	return recorder
}
