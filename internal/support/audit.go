package support

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// AuditEntry is one line of <state>/audit.log.
type AuditEntry struct {
	TimestampUtc string `json:"timestampUtc"`
	RunID        string `json:"runId,omitempty"`
	Operation    string `json:"operation"`
	Mode         string `json:"mode,omitempty"`
	Findings     int    `json:"findings"`
	Failing      int    `json:"failing"`
	Regressions  int    `json:"regressions,omitempty"`
	Moves        int    `json:"moves,omitempty"`
	Branch       string `json:"branch,omitempty"`
	Commit       string `json:"commit,omitempty"`
	ManifestSHA  string `json:"manifestSha,omitempty"`
	Result       string `json:"result"`
	Error        string `json:"error,omitempty"`
}

// AppendAudit appends entry as a JSON line, stamping the time.
func AppendAudit(stateDir string, entry AuditEntry) error {
	if entry.TimestampUtc == "" {
		entry.TimestampUtc = time.Now().UTC().Format(time.RFC3339)
	}
	path := filepath.Join(stateDir, "audit.log")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}
