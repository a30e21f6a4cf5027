package vos

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/josephlewis42/tinysh/core/shell"
	"github.com/josephlewis42/tinysh/core/vos/vostest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBuiltins are in-process programs available to the test spawner.
var testBuiltins = map[string]ProcessFunc{
	"hello": func(args []string, stdio VIO) int {
		fmt.Fprintln(stdio.Stdout(), "hello", strings.Join(args[1:], " "))
		return 0
	},
	"count": func(args []string, stdio VIO) int {
		lines := 0
		scanner := bufio.NewScanner(stdio.Stdin())
		for scanner.Scan() {
			lines++
		}
		fmt.Fprintln(stdio.Stdout(), lines)
		return 0
	},
	"fail": func(args []string, stdio VIO) int {
		fmt.Fprintln(stdio.Stderr(), "failing")
		return 3
	},
}

func newTestSpawner(t *testing.T) *Spawner {
	t.Helper()

	bin := t.TempDir()
	vostest.WriteScript(t, bin, "gen", `printf 'c\nb\na\n'`)
	vostest.WriteScript(t, bin, "upper", `tr a-z A-Z`)
	vostest.WriteScript(t, bin, "sorter", `sort`)
	vostest.WriteScript(t, bin, "passthrough", `cat`)
	vostest.WriteScript(t, bin, "status", `exit "$1"`)
	vostest.WriteScript(t, bin, "complain", `echo "complaint" >&2`)

	return &Spawner{
		Dir: t.TempDir(),
		Env: []string{"PATH=" + bin + ":/usr/bin:/bin"},
		Resolve: func(name string) ProcessFunc {
			return testBuiltins[name]
		},
	}
}

type pipelineResult struct {
	status int
	err    error
	stdout string
	stderr string
}

func runPipeline(t *testing.T, sp *Spawner, line string) pipelineResult {
	t.Helper()

	pipeline, err := shell.Parse(line)
	require.NoError(t, err)

	var stdout, stderr vostest.SyncBuffer
	done := make(chan pipelineResult, 1)
	go func() {
		status, err := sp.RunPipeline(pipeline, NewVIOAdapter(strings.NewReader(""), &stdout, &stderr))
		done <- pipelineResult{status: status, err: err}
	}()

	select {
	case res := <-done:
		res.stdout = stdout.String()
		res.stderr = stderr.String()
		return res
	case <-time.After(10 * time.Second):
		t.Fatalf("pipeline %q did not finish, a pipe end was probably left open", line)
		return pipelineResult{}
	}
}

func TestRunPipeline(t *testing.T) {
	cases := map[string]struct {
		line       string
		wantStatus int
		wantStdout string
		wantStderr string
	}{
		"single-external": {
			line:       "gen",
			wantStdout: "c\nb\na\n",
		},
		"three-external": {
			line:       "gen | upper | sorter",
			wantStdout: "A\nB\nC\n",
		},
		"builtin-into-external": {
			line:       "hello world | upper",
			wantStdout: "HELLO WORLD\n",
		},
		"external-into-builtin": {
			line:       "gen | count",
			wantStdout: "3\n",
		},
		"builtin-into-builtin": {
			line:       "hello | count",
			wantStdout: "1\n",
		},
		"long-pipeline": {
			line:       "gen | passthrough | passthrough | passthrough | sorter | count",
			wantStdout: "3\n",
		},
		"last-status-wins": {
			line:       "gen | status 4",
			wantStatus: 4,
		},
		"builtin-status": {
			line:       "gen | fail",
			wantStatus: 3,
			wantStderr: "failing\n",
		},
		"not-found-first": {
			line:       "missing | count",
			wantStdout: "0\n",
			wantStderr: "missing: command not found\n",
		},
		"not-found-last": {
			line:       "gen | missing",
			wantStatus: StatusNotFound,
			wantStderr: "missing: command not found\n",
		},
		"stderr-shared": {
			line:       "complain | count",
			wantStdout: "0\n",
			wantStderr: "complaint\n",
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			res := runPipeline(t, newTestSpawner(t), tc.line)

			assert.NoError(t, res.err)
			assert.Equal(t, tc.wantStatus, res.status)
			assert.Equal(t, tc.wantStdout, res.stdout)
			assert.Equal(t, tc.wantStderr, res.stderr)
		})
	}
}

func TestRunPipeline_onStartError(t *testing.T) {
	sp := newTestSpawner(t)
	var failed [][]string
	sp.OnStartError = func(args []string, err error) {
		assert.ErrorIs(t, err, ErrNotFound)
		failed = append(failed, args)
	}

	res := runPipeline(t, sp, "missing a | count | nothere b c")

	assert.Equal(t, StatusNotFound, res.status)
	assert.Equal(t, [][]string{{"missing", "a"}, {"nothere", "b", "c"}}, failed)
}

func TestRunPipeline_redirects(t *testing.T) {
	sp := newTestSpawner(t)

	t.Run("stdout-redirect-mid-pipeline", func(t *testing.T) {
		res := runPipeline(t, sp, "gen > out.txt | count")
		assert.NoError(t, res.err)
		assert.Equal(t, "0\n", res.stdout)

		contents, err := os.ReadFile(filepath.Join(sp.Dir, "out.txt"))
		assert.NoError(t, err)
		assert.Equal(t, "c\nb\na\n", string(contents))
	})

	t.Run("append", func(t *testing.T) {
		res := runPipeline(t, sp, "hello a >> log.txt")
		assert.NoError(t, res.err)
		res = runPipeline(t, sp, "hello b | passthrough 1>> log.txt")
		assert.NoError(t, res.err)

		contents, err := os.ReadFile(filepath.Join(sp.Dir, "log.txt"))
		assert.NoError(t, err)
		assert.Equal(t, "hello a\nhello b\n", string(contents))
	})

	t.Run("stderr-redirect", func(t *testing.T) {
		res := runPipeline(t, sp, "missing 2> err.txt | count")
		assert.NoError(t, res.err)
		assert.Empty(t, res.stderr)

		contents, err := os.ReadFile(filepath.Join(sp.Dir, "err.txt"))
		assert.NoError(t, err)
		assert.Equal(t, "missing: command not found\n", string(contents))
	})

	t.Run("bad-target-aborts", func(t *testing.T) {
		res := runPipeline(t, sp, "hello > missing-dir/out.txt | count")
		assert.Error(t, res.err)
		assert.Equal(t, 1, res.status)
		assert.Empty(t, res.stdout)
		assert.Contains(t, res.err.Error(), "missing-dir/out.txt")
	})
}

func TestSpawner_Start(t *testing.T) {
	sp := newTestSpawner(t)

	t.Run("external", func(t *testing.T) {
		var stdout bytes.Buffer
		proc, err := sp.Start([]string{"upper"}, NewVIOAdapter(strings.NewReader("abc\n"), &stdout, nil))
		require.NoError(t, err)
		assert.Equal(t, 0, proc.Wait())
		assert.Equal(t, "ABC\n", stdout.String())
	})

	t.Run("status", func(t *testing.T) {
		proc, err := sp.Start([]string{"status", "7"}, NewNullIO())
		require.NoError(t, err)
		assert.Equal(t, 7, proc.Wait())
	})

	t.Run("not-found", func(t *testing.T) {
		_, err := sp.Start([]string{"missing"}, NewNullIO())
		var execErr *ExecError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, StatusNotFound, execErr.Status())
		assert.Equal(t, "missing: command not found", execErr.Error())
	})

	t.Run("builtin", func(t *testing.T) {
		var stdout bytes.Buffer
		proc, err := sp.Start([]string{"hello", "there"}, NewVIOAdapter(nil, &stdout, nil))
		require.NoError(t, err)
		assert.Equal(t, 0, proc.Wait())
		assert.Equal(t, "hello there\n", stdout.String())
	})

	t.Run("working-directory", func(t *testing.T) {
		vostest.WriteScript(t, sp.Dir, "local", "pwd")

		var stdout bytes.Buffer
		proc, err := sp.Start([]string{"./local"}, NewVIOAdapter(nil, &stdout, nil))
		require.NoError(t, err)
		assert.Equal(t, 0, proc.Wait())

		want, err := filepath.EvalSymlinks(sp.Dir)
		require.NoError(t, err)
		got, err := filepath.EvalSymlinks(strings.TrimSpace(stdout.String()))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}
