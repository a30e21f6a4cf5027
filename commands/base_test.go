package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/josephlewis42/tinysh/core/config"
	"github.com/josephlewis42/tinysh/core/vos"
	"github.com/josephlewis42/tinysh/core/vos/vostest"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

// newTestShell creates a shell in a temporary directory whose stdout and
// stderr both go to the returned buffer. PATH holds the system tools.
func newTestShell(t *testing.T) (*Shell, *vostest.SyncBuffer) {
	t.Helper()

	out := &vostest.SyncBuffer{}
	dir := t.TempDir()
	s := NewShell(vos.NewVIOAdapter(strings.NewReader(""), out, out), dir, []string{
		"HOME=" + dir,
		"PATH=/usr/bin:/bin",
	})
	s.Color.Mode = config.ColorNever
	return s, out
}

type goldenTestSuite map[string]goldenTest

type goldenTest struct {
	// Lines are fed to the shell as a script.
	Lines []string
}

func (gts goldenTestSuite) Run(t *testing.T) {
	t.Helper()

	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
		goldie.WithTestNameForDir(true),
	)

	for tn, tc := range gts {
		t.Run(tn, func(t *testing.T) {
			s, out := newTestShell(t)
			s.RunScript(strings.NewReader(strings.Join(tc.Lines, "\n") + "\n"))

			g.Assert(t, tn, out.Bytes())
		})
	}
}

func TestAllBuiltins(t *testing.T) {
	names := BuiltinNames()
	assert.Equal(t, []string{"cd", "echo", "exit", "history", "pwd", "type"}, names)

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			if AllBuiltins[name] == nil {
				t.Fatal("nil builtin", name)
			}
			assert.True(t, IsBuiltin(name))
		})
	}

	assert.False(t, IsBuiltin("ls"))
}

func TestSimpleCommand(t *testing.T) {
	cases := map[string]struct {
		args       []string
		wantStatus int
		wantRun    bool
		wantStdout string
		wantStderr string
	}{
		"runs": {
			args:       []string{"cmd", "-v", "x"},
			wantStatus: 0,
			wantRun:    true,
		},
		"help": {
			args:       []string{"cmd", "--help"},
			wantStatus: 0,
			wantStdout: "usage: cmd [-v] ARG\nTest command.\n\nFlags:\n",
		},
		"bad-flag": {
			args:       []string{"cmd", "-q"},
			wantStatus: 2,
			wantStderr: "cmd: unknown option: -q\nusage: cmd [-v] ARG\nTest command.\n\nFlags:\n",
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			cmd := &SimpleCommand{
				Use:   "cmd [-v] ARG",
				Short: "Test command.",
			}
			cmd.Flags().Bool('v', "verbose")

			ran := false
			status := cmd.Run(tc.args, vos.NewVIOAdapter(nil, &stdout, &stderr), func() int {
				ran = true
				return 0
			})

			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantRun, ran)
			// Option listings are formatted by getopt, only check the prefix.
			assert.True(t, strings.HasPrefix(stdout.String(), tc.wantStdout), stdout.String())
			assert.True(t, strings.HasPrefix(stderr.String(), tc.wantStderr), stderr.String())
		})
	}
}

func TestColorPrinter(t *testing.T) {
	var buf bytes.Buffer

	never := &ColorPrinter{Mode: config.ColorNever, Output: &buf}
	assert.False(t, never.ShouldColor())
	assert.Equal(t, "$ ", never.Sprintf(ColorBoldGreen, "%s", "$ "))

	always := &ColorPrinter{Mode: config.ColorAlways, Output: &buf}
	assert.True(t, always.ShouldColor())
	assert.Contains(t, always.Sprintf(ColorBoldGreen, "%s", "$ "), "\x1b[")

	// A buffer is never a terminal.
	auto := &ColorPrinter{Mode: config.ColorAuto, Output: &buf}
	assert.False(t, auto.ShouldColor())
}
