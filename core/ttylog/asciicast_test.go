package ttylog

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/josephlewis42/tinysh/core/vos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeConversions(t *testing.T) {
	cases := map[string]struct {
		microseconds int64
		seconds      float64
	}{
		"precision": {
			microseconds: 1,
			seconds:      1e-6,
		},
		"negative": {
			microseconds: -631119539e6,
			seconds:      -631119539,
		},
		"positive": {
			microseconds: 631119539e6,
			seconds:      631119539,
		},
		"bigprecise": {
			microseconds: 123456789987654,
			seconds:      123456789.987654,
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			s2m := secondsToMicroseconds(tc.seconds)
			m2s := microsecondsToSeconds(tc.microseconds)

			// Only allow delta to be to the NS
			assert.InDelta(t, m2s, tc.seconds, float64(time.Nanosecond)/float64(time.Second))
			assert.Equal(t, s2m, tc.microseconds)
		})
	}
}

func TestAsciicastRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	sink := NewAsciicastLogSink(&buf, AsciicastHeader{
		Width:  100,
		Height: 30,
		Title:  "test",
		Env:    map[string]string{"TERM": "xterm"},
	})

	start := int64(1_600_000_000_000_000)
	entries := []*TTYLogEntry{
		{TimestampMicros: start, IO: &IO{FD: FDStdout, Data: []byte("$ ")}},
		{TimestampMicros: start + 500_000, IO: &IO{FD: FDStdin, Data: []byte("l")}},
		{TimestampMicros: start + 750_000, Resize: &Resize{Width: 120, Height: 40}},
		{TimestampMicros: start + 1_000_000, IO: &IO{FD: FDStderr, Data: []byte("oops\r\n")}},
		{TimestampMicros: start + 2_000_000, Close: true},
	}
	for _, e := range entries {
		require.NoError(t, sink(e))
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.JSONEq(t, `{"version":2,"width":100,"height":30,"timestamp":1600000000,"title":"test","env":{"TERM":"xterm"}}`, lines[0])
	assert.Equal(t, `[0.5,"i","l"]`, lines[2])
	assert.Equal(t, `[0.75,"r","120x40"]`, lines[3])

	var got []*TTYLogEntry
	require.NoError(t, Replay(NewAsciicastLogSource(&buf), func(e *TTYLogEntry) error {
		got = append(got, e)
		return nil
	}))

	want := []*TTYLogEntry{
		{TimestampMicros: 0, IO: &IO{FD: FDStdout, Data: []byte("$ ")}},
		{TimestampMicros: 500_000, IO: &IO{FD: FDStdin, Data: []byte("l")}},
		{TimestampMicros: 750_000, Resize: &Resize{Width: 120, Height: 40}},
		// stderr is collapsed into stdout
		{TimestampMicros: 1_000_000, IO: &IO{FD: FDStdout, Data: []byte("oops\r\n")}},
	}
	assert.Equal(t, want, got)
}

func TestAsciicastLogSource_malformed(t *testing.T) {
	source := NewAsciicastLogSource(strings.NewReader("{}\n[1, \"o\"]\n"))

	err := Replay(source, func(*TTYLogEntry) error { return nil })
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	var (
		stdout  bytes.Buffer
		entries []*TTYLogEntry
	)
	recorder := NewRecorder(
		vos.NewVIOAdapter(strings.NewReader("ls\n"), &stdout, nil),
		func(e *TTYLogEntry) error {
			entries = append(entries, e)
			return nil
		},
	)
	clock := int64(0)
	recorder.now = func() time.Time {
		clock++
		return time.UnixMicro(clock)
	}

	input, err := io.ReadAll(recorder.Stdin())
	require.NoError(t, err)
	assert.Equal(t, "ls\n", string(input))

	fmt.Fprint(recorder.Stdout(), "file.txt\r\n")
	fmt.Fprint(recorder.Stderr(), "warning\r\n")
	recorder.Resize(90, 20)
	require.NoError(t, recorder.Close())

	assert.Equal(t, "file.txt\r\n", stdout.String())
	assert.Equal(t, []*TTYLogEntry{
		{TimestampMicros: 1, IO: &IO{FD: FDStdin, Data: []byte("ls\n")}},
		{TimestampMicros: 2, IO: &IO{FD: FDStdout, Data: []byte("file.txt\r\n")}},
		{TimestampMicros: 3, IO: &IO{FD: FDStderr, Data: []byte("warning\r\n")}},
		{TimestampMicros: 4, Resize: &Resize{Width: 90, Height: 20}},
		{TimestampMicros: 5, Close: true},
	}, entries)

	var out bytes.Buffer
	client := NewClientOutput(&out)
	for _, e := range entries {
		require.NoError(t, client(e))
	}
	assert.Equal(t, "file.txt\r\nwarning\r\n", out.String())
}

func TestPlayback(t *testing.T) {
	var slept []time.Duration
	var played int
	sink := newPlayback(2*time.Second, func(d time.Duration) {
		slept = append(slept, d)
	}, func(*TTYLogEntry) error {
		played++
		return nil
	})

	for _, micros := range []int64{10_000_000, 10_500_000, 20_000_000, 20_000_000} {
		require.NoError(t, sink(&TTYLogEntry{TimestampMicros: micros, Close: true}))
	}

	assert.Equal(t, 4, played)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 2 * time.Second}, slept)
}
