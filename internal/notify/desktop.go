package notify

import (
	"fmt"
	"os/exec"
	"runtime"
)

// desktopSink shells out to the platform notifier when one is on PATH.
// Absence of a notifier is not an error; the sink just stays inactive.
type desktopSink struct {
	path string
	kind string
}

func newDesktopSink() Sink {
	switch runtime.GOOS {
	case "linux":
		if path, err := exec.LookPath("notify-send"); err == nil {
			return &desktopSink{path: path, kind: "notify-send"}
		}
	case "darwin":
		if path, err := exec.LookPath("osascript"); err == nil {
			return &desktopSink{path: path, kind: "osascript"}
		}
	}
	return nil
}

func (d *desktopSink) Name() string { return "desktop" }

func (d *desktopSink) Send(title, body string) error {
	var cmd *exec.Cmd
	switch d.kind {
	case "notify-send":
		cmd = exec.Command(d.path, title, body)
	case "osascript":
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		cmd = exec.Command(d.path, "-e", script)
	default:
		return nil
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("desktop notification failed: %w", err)
	}
	return nil
}
