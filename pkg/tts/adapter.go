package tts

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
)

// maxStderrLine bounds a single stderr line; engines occasionally dump long
// tracebacks or progress bar redraws on one line.
const maxStderrLine = 1024 * 1024

// processResult is the single terminal event of one engine process run:
// exit code, the verbatim stdout buffer, and the accumulated diagnostic
// stderr text (progress events already stripped, noise not yet filtered).
type processResult struct {
	ExitCode    int
	Stdout      string
	Diagnostics diagnosticBuffer
}

// runner abstracts the process adapter so the orchestrator can be tested
// without spawning real processes.
type runner interface {
	Run(ctx context.Context) (*processResult, error)
}

// processAdapter owns the lifecycle of exactly one engine process for
// exactly one generation request. It is not reused.
//
// The engine's two output streams are handled differently: stdout is
// accumulated verbatim (it carries at most one JSON result, written just
// before exit), while stderr is split into lines and demultiplexed into
// progress events and diagnostic text as they arrive.
type processAdapter struct {
	command    string
	args       []string
	onProgress func(Progress)
}

func newProcessAdapter(command string, args []string, onProgress func(Progress)) runner {
	return &processAdapter{command: command, args: args, onProgress: onProgress}
}

// Run spawns the engine process and blocks until it exits. Progress events
// are delivered to the registered listener in emission order while Run is
// blocked. The returned error is non-nil only for spawn failures
// (TransportError) and cancellation (ErrCancelled); an engine that runs to
// completion always yields a processResult, whatever its exit code.
func (a *processAdapter) Run(ctx context.Context) (*processResult, error) {
	cmd := exec.CommandContext(ctx, a.command, a.args...)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &TransportError{Command: a.command, Err: err}
	}

	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, &TransportError{Command: a.command, Err: err}
	}

	// Drain stderr on the calling goroutine; Run blocks until process exit
	// anyway and inline delivery preserves emission order.
	var diag diagnosticBuffer
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStderrLine)
	scanner.Split(scanTerminalLines)
	for scanner.Scan() {
		line := scanner.Text()
		if ev, ok := classifyLine(line); ok {
			if a.onProgress != nil {
				a.onProgress(ev)
			}
			continue
		}
		diag.add(line)
	}
	if scanner.Err() != nil {
		// A single line beyond maxStderrLine stops the scanner. The rest of
		// the stream still has to be consumed, or the engine blocks writing
		// to a full pipe and Wait never returns.
		io.Copy(io.Discard, stderr) //nolint:errcheck
	}

	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return nil, ErrCancelled
	}

	result := &processResult{
		Stdout:      stdout.String(),
		Diagnostics: diag,
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			// Wait failed for a reason other than a non-zero exit, e.g. an
			// I/O error on the pipes.
			return nil, &TransportError{Command: a.command, Err: waitErr}
		}
		result.ExitCode = exitErr.ExitCode()
	}

	return result, nil
}

// scanTerminalLines is a bufio.SplitFunc that terminates lines on \n, \r\n,
// or a bare \r. Terminal progress bars redraw themselves with carriage
// returns and never emit a newline; treating \r as a terminator keeps each
// redraw a bounded line instead of one ever-growing buffer.
func scanTerminalLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			return i + 2, data[:i], nil
		}
		if data[i] == '\r' && i+1 == len(data) && !atEOF {
			// Hold the trailing \r until we can see whether \n follows.
			return 0, nil, nil
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
