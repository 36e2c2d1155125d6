package monitor

import (
	"fmt"
	"os"
	"time"
)

// RestartLog is the append-only action log shared by every cycle on a
// host. Each write is a single line; the single-instance guard ensures
// only one cycle writes at a time, so no extra locking is needed here.
// Rotation is out of scope; the file is never truncated by the engine.
type RestartLog struct {
	path string
}

func NewRestartLog(path string) *RestartLog { return &RestartLog{path: path} }

// Append writes one line for a restart attempt. Failures to write are
// returned but callers treat them as non-fatal.
func (l *RestartLog) Append(rec RestartRecord) error {
	if l == nil || l.path == "" {
		return nil
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	ts := rec.Time.Format(time.DateTime)
	var line string
	if rec.Outcome == OutcomeRestarted {
		line = fmt.Sprintf("[%s] Restarted process=[%s] at %s\n", rec.WorkDir, rec.Command, ts)
	} else {
		line = fmt.Sprintf("[%s] Restart failed process=[%s] at %s error=[%s]\n", rec.WorkDir, rec.Command, ts, rec.Err)
	}
	_, err = f.WriteString(line)
	return err
}
