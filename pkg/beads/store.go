package beads

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// CommandRecord is the audit trail entry for one bd invocation.
type CommandRecord struct {
	EventType  string   `json:"event_type"`
	EventID    string   `json:"event_id"`
	Timestamp  string   `json:"timestamp"`
	SourceID   string   `json:"source_id,omitempty"`
	Command    []string `json:"command"`
	CWD        string   `json:"cwd"`
	ExitCode   int      `json:"exit_code"`
	Success    bool     `json:"success"`
	DurationMs int64    `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
}

// commandStore persists audit records under <base>/commands/YYYY/MM/DD/.
type commandStore struct {
	baseDir string
	nowFn   func() time.Time
}

func newCommandStore(baseDir string) *commandStore {
	return &commandStore{
		baseDir: filepath.Join(baseDir, "commands"),
		nowFn:   time.Now,
	}
}

func (s *commandStore) withNow(nowFn func() time.Time) *commandStore {
	if nowFn != nil {
		s.nowFn = nowFn
	}
	return s
}

func (s *commandStore) write(record *CommandRecord) (string, error) {
	now := s.nowFn().UTC()
	dayDir := filepath.Join(
		s.baseDir,
		now.Format("2006"),
		now.Format("01"),
		now.Format("02"),
	)
	if err := os.MkdirAll(dayDir, 0755); err != nil {
		return "", err
	}

	recordPath := filepath.Join(dayDir, record.EventID+".json")
	tmpPath := recordPath + ".tmp"

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return "", err
	}
	if err := os.Rename(tmpPath, recordPath); err != nil {
		return "", err
	}
	return recordPath, nil
}
