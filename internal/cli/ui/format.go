package ui

import (
	"fmt"
	"gamewarden/pkg/sdk"
	"strings"
	"time"
)

// FormatResult renders an operation outcome as a short multi-line summary.
func FormatResult(res *sdk.OperationResult) string {
	if res == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s", res.Intent, res.Server, statusStyle(res.Status).Render(res.Status))
	if d := res.Duration(); d > 0 {
		fmt.Fprintf(&b, " (%s)", d.Round(time.Millisecond))
	}
	if res.Endpoint != "" {
		fmt.Fprintf(&b, "\n  endpoint: %s", res.Endpoint)
	}
	if res.Output != "" {
		fmt.Fprintf(&b, "\n  output:   %s", strings.TrimRight(res.Output, "\n"))
	}
	if res.Error != "" {
		fmt.Fprintf(&b, "\n  error:    %s", res.Error)
	}
	if res.ID != "" {
		fmt.Fprintf(&b, "\n  id:       %s", res.ID)
	}
	return b.String()
}

func FormatEvent(ev sdk.Event) string {
	line := fmt.Sprintf("%s [%s] %s %s",
		ev.Time.Local().Format("15:04:05"),
		ev.Intent,
		statusStyle(ev.Step).Render(ev.Step),
		ev.Message,
	)
	return strings.TrimRight(line, " ")
}

func activity(s sdk.ServerStatus) string {
	if !s.Busy {
		return "idle"
	}
	if s.Since == nil {
		return s.Intent
	}
	return fmt.Sprintf("%s for %s", s.Intent, time.Since(*s.Since).Round(time.Second))
}
