// Package execx runs external commands with bounded time and classifies the
// outcome into a typed result. Failures never escape as panics or raw errors;
// every invocation resolves to exactly one Result.
package execx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout applies when Options.Timeout is zero and NoTimeout is unset.
const DefaultTimeout = 30 * time.Second

// excerptLimit caps how much raw output is attached to an error.
const excerptLimit = 500

// ErrorCode is the closed vocabulary of command failure classes.
type ErrorCode string

const (
	SpawnError    ErrorCode = "SPAWN_ERROR"
	Timeout       ErrorCode = "TIMEOUT"
	CommandFailed ErrorCode = "COMMAND_FAILED"
	ParseError    ErrorCode = "PARSE_ERROR"
)

// CommandError describes why a command invocation failed.
type CommandError struct {
	Code          ErrorCode
	Message       string
	StderrExcerpt string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Options controls a single command invocation.
type Options struct {
	// Dir is the working directory for the child process.
	Dir string

	// Timeout bounds the invocation. Zero means DefaultTimeout; set
	// NoTimeout to let the command run unbounded.
	Timeout   time.Duration
	NoTimeout bool

	// Env entries are merged on top of the parent environment.
	Env map[string]string

	// ParseInto, when non-nil, receives the JSON-decoded stdout. A decode
	// failure on a clean exit is classified as ParseError.
	ParseInto interface{}
}

// Result is the outcome of one command invocation. Exactly one of
// Stdout/ParseInto-data or Err is meaningful, per Success.
type Result struct {
	Success  bool
	ExitCode int
	Stdout   string
	Err      *CommandError
}

// Run executes name with args and resolves exactly once: the first of spawn
// failure, timeout expiry, or process exit wins; later signals are ignored.
// stdout and stderr accumulate independently and are only observed after the
// process has settled.
func Run(ctx context.Context, name string, args []string, opts Options) Result {
	cmd := exec.Command(name, args...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		env := os.Environ()
		for k, v := range opts.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Result{
			ExitCode: -1,
			Err:      &CommandError{Code: SpawnError, Message: err.Error()},
		}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var timerC <-chan time.Time
	if !opts.NoTimeout {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	select {
	case err := <-done:
		return classifyExit(err, cmd, stdout.String(), stderr.String(), opts)
	case <-timerC:
		_ = cmd.Process.Kill()
		<-done // reap; the timeout already won
		return Result{
			ExitCode: -1,
			Err:      &CommandError{Code: Timeout, Message: "command timed out"},
		}
	case <-ctx.Done():
		// A cancelled context is an externally owned deadline; same class.
		_ = cmd.Process.Kill()
		<-done
		return Result{
			ExitCode: -1,
			Err:      &CommandError{Code: Timeout, Message: ctx.Err().Error()},
		}
	}
}

func classifyExit(waitErr error, cmd *exec.Cmd, stdout, stderr string, opts Options) Result {
	exitCode := 0
	if waitErr != nil {
		exitCode = exitCodeFromErr(waitErr)
	}

	outText := strings.TrimSpace(stdout)
	errText := strings.TrimSpace(stderr)

	// A clean exit code with empty stdout but diagnostic output on stderr is
	// still a failure: the tool printed nothing usable and complained.
	if exitCode != 0 || (outText == "" && errText != "") {
		msg := errText
		if msg == "" {
			msg = fmt.Sprintf("Command exited with code %d", exitCode)
		}
		return Result{
			ExitCode: exitCode,
			Err: &CommandError{
				Code:          CommandFailed,
				Message:       msg,
				StderrExcerpt: excerpt(errText),
			},
		}
	}

	if opts.ParseInto != nil {
		if outText != "" {
			if err := json.Unmarshal([]byte(outText), opts.ParseInto); err != nil {
				return Result{
					ExitCode: exitCode,
					Err: &CommandError{
						Code:          ParseError,
						Message:       fmt.Sprintf("decoding command output: %v", err),
						StderrExcerpt: excerpt(outText),
					},
				}
			}
		}
		return Result{Success: true, ExitCode: exitCode}
	}

	return Result{Success: true, ExitCode: exitCode, Stdout: outText}
}

func exitCodeFromErr(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func excerpt(s string) string {
	if len(s) > excerptLimit {
		return s[:excerptLimit]
	}
	return s
}
