package vos

import (
	"fmt"
	"io"
	"os"

	"github.com/josephlewis42/tinysh/core/shell"
)

// OpenRedirects opens the redirect targets, resolving relative paths against
// dir, and returns stdio with the redirected streams rebound. The caller owns
// the returned files and must close them. On error no files are left open.
func OpenRedirects(dir string, redirects shell.Redirects, stdio VIO) (VIO, []io.Closer, error) {
	var (
		opened []io.Closer
		stdout io.Writer = stdio.Stdout()
		stderr io.Writer = stdio.Stderr()
	)

	for _, redirect := range redirects {
		fd, err := os.OpenFile(Resolve(dir, redirect.Path), redirect.OpenFlags(), 0644)
		if err != nil {
			closeAll(opened)
			return nil, nil, fmt.Errorf("%s: %w", redirect.Path, unwrapPathError(err))
		}
		opened = append(opened, fd)

		switch redirect.Stream {
		case shell.Stdout:
			stdout = fd
		case shell.Stderr:
			stderr = fd
		}
	}

	return NewVIOAdapter(stdio.Stdin(), stdout, stderr), opened, nil
}

// unwrapPathError drops the operation and path from an *fs.PathError so the
// message can be prefixed with the path as the user wrote it.
func unwrapPathError(err error) error {
	if pathErr, ok := err.(*os.PathError); ok {
		return pathErr.Err
	}
	return err
}

// RunPipeline runs every stage concurrently, connecting the output of each
// stage to the input of the next with an OS pipe, and waits for all of them
// to exit. It returns the exit status of the last stage.
//
// Stages that can't be started report the problem on stderr, are passed to
// OnStartError and count as exited; the others still run. An error is
// returned, and nothing is run, if a redirect target can't be opened or the
// pipes can't be created.
func (sp *Spawner) RunPipeline(pipeline shell.Pipeline, stdio VIO) (int, error) {
	n := len(pipeline)
	if n == 0 {
		return 0, nil
	}

	// Open every redirect first so a bad target aborts the whole pipeline.
	stageIO := make([]VIO, n)
	stageFiles := make([][]io.Closer, n)
	for i, stage := range pipeline {
		redirected, files, err := OpenRedirects(sp.Dir, stage.Redirects, NewNullIO())
		if err != nil {
			for _, f := range stageFiles[:i] {
				closeAll(f)
			}
			return 1, err
		}
		stageIO[i] = redirected
		stageFiles[i] = files
	}

	readers := make([]*os.File, n-1)
	writers := make([]*os.File, n-1)
	for i := 0; i < n-1; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			for j := 0; j < i; j++ {
				readers[j].Close()
				writers[j].Close()
			}
			for _, f := range stageFiles {
				closeAll(f)
			}
			return 1, fmt.Errorf("pipe: %w", err)
		}
		readers[i], writers[i] = r, w
	}

	procs := make([]Process, n)
	for i, stage := range pipeline {
		var (
			stdin  io.Reader = stdio.Stdin()
			stdout io.Writer = stdio.Stdout()
			stderr io.Writer = stdio.Stderr()
			owned            = stageFiles[i]
		)
		if i > 0 {
			stdin = readers[i-1]
			owned = append(owned, readers[i-1])
		}
		if i < n-1 {
			stdout = writers[i]
			owned = append(owned, writers[i])
		}
		if _, ok := stage.Redirects.Get(shell.Stdout); ok {
			stdout = stageIO[i].Stdout()
		}
		if _, ok := stage.Redirects.Get(shell.Stderr); ok {
			stderr = stageIO[i].Stderr()
		}

		proc, err := sp.start(stage.Args, NewVIOAdapter(stdin, stdout, stderr), owned)
		if err != nil {
			fmt.Fprintln(stderr, err)
			if sp.OnStartError != nil {
				sp.OnStartError(stage.Args, err)
			}
			closeAll(owned)
			procs[i] = ExitedProcess(exitStatusForError(err))
			continue
		}
		procs[i] = proc
	}

	status := 0
	for _, proc := range procs {
		status = proc.Wait()
	}
	return status, nil
}

func exitStatusForError(err error) int {
	if execErr, ok := err.(*ExecError); ok {
		return execErr.Status()
	}
	return 1
}
