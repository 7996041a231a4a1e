// Package output provides terminal output utilities for guipack: check
// markers, a spinner for slow steps and the build history table.
package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/blackwell-systems/guipack/internal/store"
)

// RenderHistoryTable renders builds in the order given, newest first by
// convention. now anchors the relative start times.
func RenderHistoryTable(builds []*store.BuildRecord, now time.Time, color bool) string {
	if len(builds) == 0 {
		return "No builds recorded.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-8s %-16s %-8s %-10s %-8s %-9s %-11s %s\n",
		"ID", "App", "Platform", "Status", "Size", "Took", "Icon", "Started"))
	sb.WriteString(strings.Repeat("─", 90))
	sb.WriteString("\n")

	for _, b := range builds {
		size := "-"
		if b.ArtifactBytes > 0 {
			size = humanize.Bytes(uint64(b.ArtifactBytes))
		}
		status := fmt.Sprintf("%-10s", b.Status)
		if color {
			status = statusColor(b.Status) + status + colorReset
		}
		sb.WriteString(fmt.Sprintf("%-8s %-16s %-8s %s %-8s %-9s %-11s %s\n",
			shortID(b.ID),
			truncate(b.App, 16),
			b.Platform,
			status,
			size,
			b.Duration().Round(time.Second),
			b.IconStatus,
			humanize.RelTime(b.StartedAt, now, "ago", "from now")))
	}

	return sb.String()
}

// RenderBuildDetail renders every field of one build.
func RenderBuildDetail(b *store.BuildRecord) string {
	var sb strings.Builder
	row := func(k, v string) {
		if v != "" {
			sb.WriteString(fmt.Sprintf("%-13s %s\n", k+":", v))
		}
	}
	row("ID", b.ID)
	row("App", b.App)
	row("Platform", b.Platform)
	row("Status", string(b.Status))
	row("Started", b.StartedAt.Local().Format(time.RFC1123))
	row("Took", b.Duration().Round(time.Millisecond).String())
	row("Interpreter", b.Interpreter)
	row("PyInstaller", b.ToolVersion)
	row("Icon", b.IconStatus)
	row("Artifact", b.Artifact)
	if b.ArtifactBytes > 0 {
		row("Size", fmt.Sprintf("%s (%s bytes)", humanize.Bytes(uint64(b.ArtifactBytes)), humanize.Comma(b.ArtifactBytes)))
	}
	if b.Status == store.StatusFailed {
		row("Exit code", fmt.Sprint(b.ExitCode))
		row("Error", b.Error)
	}
	return sb.String()
}

func statusColor(s store.Status) string {
	switch s {
	case store.StatusSucceeded:
		return colorGreen
	case store.StatusFailed:
		return colorRed
	default:
		return colorGray
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncate shortens s to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
