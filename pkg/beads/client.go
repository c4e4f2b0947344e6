// Package beads is a typed client for the external bd CLI. Every invocation
// goes through execx with a bounded timeout, sets BEADS_DIR to the source's
// redirect-resolved data dir, and leaves an audit record on disk.
package beads

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/townworks/towncrier/pkg/execx"
	"github.com/townworks/towncrier/pkg/logger"
	"github.com/townworks/towncrier/pkg/town"
)

const binaryName = "bd"

// RunFunc matches execx.Run and is injectable for tests.
type RunFunc func(ctx context.Context, name string, args []string, opts execx.Options) execx.Result

// ClientOptions tune a Client; zero values select production behavior.
type ClientOptions struct {
	NowFn            func() time.Time
	LookPathFn       func(file string) (string, error)
	BinaryCandidates []string
	RunFn            RunFunc

	// AuditDir enables the on-disk command audit store when non-empty.
	AuditDir string

	// Timeout bounds each bd invocation; zero uses the execx default.
	Timeout time.Duration
}

// Client invokes bd against one source at a time.
type Client struct {
	nowFn            func() time.Time
	lookPathFn       func(file string) (string, error)
	binaryCandidates []string
	runFn            RunFunc
	store            *commandStore
	timeout          time.Duration
}

// NewClient creates a bd client.
func NewClient(opts ClientOptions) *Client {
	nowFn := opts.NowFn
	if nowFn == nil {
		nowFn = time.Now
	}
	lookPathFn := opts.LookPathFn
	if lookPathFn == nil {
		lookPathFn = exec.LookPath
	}
	binaryCandidates := opts.BinaryCandidates
	if len(binaryCandidates) == 0 {
		binaryCandidates = defaultBinaryCandidates()
	}
	runFn := opts.RunFn
	if runFn == nil {
		runFn = execx.Run
	}

	c := &Client{
		nowFn:            nowFn,
		lookPathFn:       lookPathFn,
		binaryCandidates: binaryCandidates,
		runFn:            runFn,
		timeout:          opts.Timeout,
	}
	if opts.AuditDir != "" {
		c.store = newCommandStore(opts.AuditDir).withNow(nowFn)
	}
	return c
}

// ResolveBinaryPath returns the bd binary path, using PATH first and then
// OS-specific fallback candidates. Safe to call when PATH is minimal
// (daemons, launchd/systemd units).
func (c *Client) ResolveBinaryPath() (string, error) {
	if c.lookPathFn != nil {
		if binaryPath, err := c.lookPathFn(binaryName); err == nil && strings.TrimSpace(binaryPath) != "" {
			return binaryPath, nil
		}
	}

	checked := make([]string, 0, len(c.binaryCandidates))
	for _, candidate := range c.binaryCandidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		checked = append(checked, candidate)
		if isExecutableFile(candidate) {
			return candidate, nil
		}
	}

	if len(checked) == 0 {
		return "", errors.New("bd binary not found in PATH (no fallback candidates configured)")
	}
	return "", fmt.Errorf("bd binary not found in PATH or fallback paths: %s", strings.Join(checked, ", "))
}

// Version probes the bd binary version; empty string when unavailable.
func (c *Client) Version() string {
	binaryPath, err := c.ResolveBinaryPath()
	if err != nil {
		return ""
	}
	res := c.runFn(context.Background(), binaryPath, []string{"--version"}, execx.Options{
		Timeout: 3 * time.Second,
	})
	if !res.Success {
		return ""
	}
	return strings.SplitN(res.Stdout, "\n", 2)[0]
}

// List queries one source for beads. A failed invocation returns the typed
// command error; callers decide whether to tolerate it.
func (c *Client) List(ctx context.Context, src town.Source, q ListQuery) ([]Bead, error) {
	args := []string{"list", "--json"}
	if q.Status != "" {
		args = append(args, "--status="+q.Status)
	}
	if q.Type != "" {
		args = append(args, "--type="+q.Type)
	}
	if q.Limit > 0 {
		args = append(args, "--limit="+strconv.Itoa(q.Limit))
	}

	binaryPath, err := c.ResolveBinaryPath()
	if err != nil {
		return nil, &execx.CommandError{Code: execx.SpawnError, Message: err.Error()}
	}

	start := c.nowFn()
	var beads []Bead
	res := c.runFn(ctx, binaryPath, args, execx.Options{
		Dir:       src.WorkingDir,
		Timeout:   c.timeout,
		Env:       map[string]string{"BEADS_DIR": src.DataDir},
		ParseInto: &beads,
	})

	c.audit(src, args, res, time.Since(start))

	if !res.Success {
		logger.WarnCF("beads", "bd list failed", map[string]interface{}{
			"source_id": src.ID,
			"code":      string(res.Err.Code),
			"exit_code": res.ExitCode,
			"error":     res.Err.Message,
		})
		return nil, res.Err
	}
	return beads, nil
}

func (c *Client) audit(src town.Source, args []string, res execx.Result, elapsed time.Duration) {
	if c.store == nil {
		return
	}
	record := CommandRecord{
		EventType:  "bd_command",
		EventID:    uuid.NewString(),
		Timestamp:  c.nowFn().UTC().Format(time.RFC3339),
		SourceID:   src.ID,
		Command:    append([]string{binaryName}, args...),
		CWD:        src.WorkingDir,
		ExitCode:   res.ExitCode,
		Success:    res.Success,
		DurationMs: elapsed.Milliseconds(),
	}
	if res.Err != nil {
		record.Error = res.Err.Error()
	}
	if _, err := c.store.write(&record); err != nil {
		logger.ErrorCF("beads", "failed to write command audit record", map[string]interface{}{
			"event_id": record.EventID,
			"error":    err.Error(),
		})
	}
}

func defaultBinaryCandidates() []string {
	seen := map[string]struct{}{}
	add := func(out []string, v string) []string {
		v = strings.TrimSpace(v)
		if v == "" {
			return out
		}
		if _, exists := seen[v]; exists {
			return out
		}
		seen[v] = struct{}{}
		return append(out, v)
	}

	binName := binaryName
	if runtime.GOOS == "windows" {
		binName = binaryName + ".exe"
	}

	candidates := make([]string, 0, 4)
	candidates = add(candidates, os.Getenv("TOWNCRIER_BD_BINARY"))

	if prefix := strings.TrimSpace(os.Getenv("HOMEBREW_PREFIX")); prefix != "" {
		candidates = add(candidates, filepath.Join(prefix, "bin", binName))
	}

	switch runtime.GOOS {
	case "darwin":
		candidates = add(candidates, filepath.Join("/opt/homebrew/bin", binName))
		candidates = add(candidates, filepath.Join("/usr/local/bin", binName))
	case "linux":
		candidates = add(candidates, filepath.Join("/usr/local/bin", binName))
		candidates = add(candidates, filepath.Join("/usr/bin", binName))
	}
	return candidates
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0111 != 0
}
