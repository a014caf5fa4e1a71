package ui

import (
	"fmt"
	"strings"

	"github.com/nadahalli/thumper/internal/session"
	"github.com/nadahalli/thumper/internal/summary"
	"github.com/nadahalli/thumper/internal/workout"
)

const placeholder = "--"

func phaseLabel(p session.Phase) string {
	switch p {
	case session.PhaseIdle:
		return "Ready"
	case session.PhaseCountdown:
		return "Get ready"
	case session.PhaseActive:
		return "Jumping"
	case session.PhasePaused:
		return "Paused"
	case session.PhaseStopped:
		return "Finished"
	default:
		return string(p)
	}
}

// formatClock renders seconds as MM:SS, or H:MM:SS from one hour on.
func formatClock(totalSeconds int) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

func formatOptionalInt(v *int, unit string) string {
	if v == nil {
		return placeholder
	}
	if unit == "" {
		return fmt.Sprintf("%d", *v)
	}
	return fmt.Sprintf("%d %s", *v, unit)
}

func formatRate(v *float64) string {
	if v == nil {
		return placeholder
	}
	return fmt.Sprintf("%.1f", *v)
}

func connectionLabel(s workout.ConnectionState) string {
	switch s {
	case workout.Connected:
		return "[green]connected[white]"
	case workout.Scanning:
		return "[yellow]scanning...[white]"
	case workout.Connecting:
		return "[yellow]connecting...[white]"
	default:
		return "[gray]not connected[white]"
	}
}

// workoutText renders the live panel for the workout page.
func workoutText(st session.State) string {
	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, "  [yellow]%s[white]\n\n", phaseLabel(st.Phase))

	if st.Phase == session.PhaseCountdown {
		fmt.Fprintf(&b, "  Starting in      [yellow]%d[white]\n\n", st.Countdown)
	} else {
		fmt.Fprintf(&b, "  Elapsed          [yellow]%s[white]\n\n", formatClock(st.ElapsedSeconds))
	}
	fmt.Fprintf(&b, "  Jumps            [yellow]%d[white]\n\n", st.JumpCount)
	fmt.Fprintf(&b, "  [red]♥[white] Heart rate     [yellow]%s[white]\n", formatOptionalInt(st.HeartRate, "bpm"))
	fmt.Fprintf(&b, "  Monitor          %s\n\n", connectionLabel(st.ConnectionState))
	fmt.Fprintf(&b, "  Sensitivity      [yellow]%d[white]\n", st.Sensitivity)
	return b.String()
}

func controlsHint(p session.Phase) string {
	var action string
	switch p {
	case session.PhaseIdle:
		action = "[yellow]Space[white] Start"
	case session.PhaseActive:
		action = "[yellow]Space[white] Pause  |  [yellow]S[white] Stop"
	case session.PhasePaused:
		action = "[yellow]Space[white] Resume  |  [yellow]S[white] Stop"
	default:
		action = ""
	}
	common := "[yellow]B[white]/[yellow]Shift+B[white] Connect/Disconnect HR  |  [yellow]+[white]/[yellow]-[white] Sensitivity  |  [yellow]H[white] History  |  [yellow]Q[white] Quit"
	if action == "" {
		return common
	}
	return action + "\n" + common
}

// summaryText is the body of the modal shown when a session stops.
func summaryText(m summary.Metrics) string {
	lines := []string{
		"Workout complete",
		"",
		"Duration: " + formatClock(m.DurationSeconds),
		"Jump time: " + formatClock(m.JumpTimeSeconds),
		"Jumps: " + formatOptionalInt(m.JumpCount, ""),
		"Jumps/min: " + formatRate(m.JumpsPerMinute),
		"Avg heart rate: " + formatOptionalInt(m.AvgHeartRate, "bpm"),
	}
	return strings.Join(lines, "\n")
}

// historyRow returns the main and secondary text of a history list entry.
func historyRow(w workout.Workout) (string, string) {
	main := fmt.Sprintf("%s  %s", w.StartTime.Local().Format("2006-01-02 15:04"), formatClock(w.DurationSeconds))
	secondary := fmt.Sprintf("jumps %s, jump time %s, avg HR %s",
		formatOptionalInt(w.JumpCount, ""),
		formatJumpTime(w.JumpTimeSeconds),
		formatOptionalInt(w.AvgHeartRate, "bpm"),
	)
	return main, secondary
}

func formatJumpTime(v *int) string {
	if v == nil {
		return placeholder
	}
	return formatClock(*v)
}
