// Package notify raises desktop notifications for failed watch runs.
package notify

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/neboloop/agencycheck/internal/check"
	"github.com/neboloop/agencycheck/internal/logging"
)

const maxLen = 256

// run executes the platform command; tests swap it.
var run = func(cmd *exec.Cmd) error { return cmd.Run() }

// Send displays a native OS notification. Unsupported platforms and missing
// notifiers are logged and ignored.
func Send(title, body string) {
	cmd := command(runtime.GOOS, sanitize(title), sanitize(body))
	if cmd == nil {
		return
	}
	if err := run(cmd); err != nil {
		logging.Warnf("[notify] failed to send notification: %v", err)
	}
}

// Failures notifies about a run's failed checks. Passing runs stay quiet.
func Failures(runID string, r check.Results) {
	failed := r.Failed()
	if len(failed) == 0 {
		return
	}
	title := fmt.Sprintf("agencycheck: %d of %d checks failed", len(failed), r.Total())
	body := strings.Join(failed, "; ")
	if runID != "" {
		body = fmt.Sprintf("run %.8s: %s", runID, body)
	}
	Send(title, body)
}

func command(goos, title, body string) *exec.Cmd {
	switch goos {
	case "darwin":
		script := fmt.Sprintf(`display notification %q with title %q`, body, title)
		return exec.Command("osascript", "-e", script)
	case "linux":
		return exec.Command("notify-send", "--urgency=critical", title, body)
	case "windows":
		ps := fmt.Sprintf(`
[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] > $null
$template = [Windows.UI.Notifications.ToastNotificationManager]::GetTemplateContent([Windows.UI.Notifications.ToastTemplateType]::ToastText02)
$textNodes = $template.GetElementsByTagName('text')
$textNodes.Item(0).AppendChild($template.CreateTextNode('%s')) > $null
$textNodes.Item(1).AppendChild($template.CreateTextNode('%s')) > $null
$toast = [Windows.UI.Notifications.ToastNotification]::new($template)
[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier('agencycheck').Show($toast)
`, title, body)
		return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", ps)
	}
	return nil
}

// sanitize strips characters that break the PowerShell single-quoted
// strings and truncates long bodies.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "'", "’")
	s = strings.ReplaceAll(s, "\\", "")
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return s
}
