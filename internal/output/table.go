// Package output renders appscout data for the terminal: plain ASCII
// tables with ANSI colors when stdout is a TTY.
package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/fernwell-systems/appscout/internal/store"
)

// ANSI color codes for score tiers.
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderRecommendationTable renders ranked suggestions. Expects the rows
// pre-sorted by the store (score descending, name ascending).
func RenderRecommendationTable(recs []*store.Recommendation) string {
	if len(recs) == 0 {
		return "No recommendations yet. Run 'appscout run' to generate some.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-4s %-24s %-7s %s\n",
		"#", "Package", "Score", "Why"))
	sb.WriteString(strings.Repeat("─", 72))
	sb.WriteString("\n")

	for i, r := range recs {
		scoreStr := fmt.Sprintf("%.2f", r.Score)
		sb.WriteString(fmt.Sprintf("%-4d %-24s %-7s %s\n",
			i+1,
			truncate(r.Package, 24),
			colorize(scoreColor(r.Score), scoreStr),
			formatReasons(r.Reasons)))
	}
	return sb.String()
}

// RenderPackageTable renders the tracked package inventory.
func RenderPackageTable(pkgs []*store.Package, installed map[string]bool, lastUsed map[string]time.Time) string {
	if len(pkgs) == 0 {
		return "No packages tracked yet. Run 'appscout run --scan' first.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-24s %-16s %-10s %s\n",
		"Package", "Category", "Installed", "Last Used"))
	sb.WriteString(strings.Repeat("─", 68))
	sb.WriteString("\n")

	for _, p := range pkgs {
		state := colorize(colorGray, "no")
		if installed[p.Name] {
			state = colorize(colorGreen, "yes")
		}
		used := "never"
		if t, ok := lastUsed[p.Name]; ok {
			used = formatRelativeTime(t)
		}
		sb.WriteString(fmt.Sprintf("%-24s %-16s %-10s %s\n",
			truncate(p.Name, 24),
			truncate(p.Category, 16),
			state,
			used))
	}
	return sb.String()
}

// RenderHardwareTable renders the stored hardware facts.
func RenderHardwareTable(facts []store.HardwareFact) string {
	if len(facts) == 0 {
		return "No hardware facts recorded yet. Run 'appscout run --scan' first.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-10s %-10s %-36s %s\n",
		"Class", "Vendor", "Model", "Observed"))
	sb.WriteString(strings.Repeat("─", 76))
	sb.WriteString("\n")

	for _, f := range facts {
		sb.WriteString(fmt.Sprintf("%-10s %-10s %-36s %s\n",
			f.Class,
			f.Vendor,
			truncate(f.Model, 36),
			formatRelativeTime(f.ObservedAt)))
	}
	return sb.String()
}

func scoreColor(score float64) string {
	switch {
	case score >= 2.0:
		return colorGreen
	case score >= 0.5:
		return colorYellow
	default:
		return colorGray
	}
}

// formatReasons turns reason tags into a short readable phrase, e.g.
// "hardware:gpu-amd" becomes "matches gpu-amd".
func formatReasons(reasons []string) string {
	if len(reasons) == 0 {
		return ""
	}
	parts := make([]string, 0, len(reasons))
	for _, r := range reasons {
		switch {
		case strings.HasPrefix(r, "hardware:"):
			parts = append(parts, "matches "+strings.TrimPrefix(r, "hardware:"))
		case strings.HasPrefix(r, "category:"):
			parts = append(parts, "you use "+strings.TrimPrefix(r, "category:")+" apps")
		case r == "popular":
			parts = append(parts, "widely used")
		default:
			parts = append(parts, r)
		}
	}
	return strings.Join(parts, ", ")
}

// formatRelativeTime converts a timestamp to relative time (e.g. "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
