package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/lmittmann/tint"
)

// Version information for the exprrepr tools
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-19"
	CommitSHA = "unknown" // Will be set during build
)

// VersionInfo contains version and build information
type VersionInfo struct {
	Version       string `json:"version"`
	BuildDate     string `json:"build_date"`
	CommitSHA     string `json:"commit_sha"`
	GoVersion     string `json:"go_version"`
	Platform      string `json:"platform"`
	Arch          string `json:"arch"`
	FormatVersion string `json:"format_version,omitempty"`
}

// GetVersionInfo returns structured version information
func GetVersionInfo(formatVersion string) *VersionInfo {
	return &VersionInfo{
		Version:       Version,
		BuildDate:     BuildDate,
		CommitSHA:     CommitSHA,
		GoVersion:     runtime.Version(),
		Platform:      runtime.GOOS,
		Arch:          runtime.GOARCH,
		FormatVersion: formatVersion,
	}
}

// PrintVersion writes version information as text or JSON.
func PrintVersion(w io.Writer, toolName string, info *VersionInfo, jsonOutput bool) error {
	if jsonOutput {
		data, err := json.MarshalIndent(map[string]any{
			"tool":         toolName,
			"version_info": info,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal version info: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	fmt.Fprintf(w, "%s v%s\n", toolName, info.Version)
	fmt.Fprintf(w, "Build Date: %s\n", info.BuildDate)
	if info.CommitSHA != "unknown" && info.CommitSHA != "" {
		fmt.Fprintf(w, "Commit: %s\n", info.CommitSHA)
	}
	if info.FormatVersion != "" {
		fmt.Fprintf(w, "Representation Format: %s\n", info.FormatVersion)
	}
	fmt.Fprintf(w, "Go Version: %s\n", info.GoVersion)
	_, err := fmt.Fprintf(w, "Platform: %s/%s\n", info.Platform, info.Arch)
	return err
}

// ColorEnabled resolves a color mode of auto, always or never. Auto follows
// fatih/color's terminal and NO_COLOR detection.
func ColorEnabled(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return !color.NoColor
	}
}

// NewLogger creates a human-readable slog logger writing to w.
func NewLogger(w io.Writer, level slog.Level, colored bool) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    !colored,
	}))
}

// Logr bridges l to the logr.Logger the library packages accept. V(n)
// records at slog level -n, so V(1) output needs the debug level.
func Logr(l *slog.Logger) logr.Logger {
	return logr.FromSlogHandler(l.Handler())
}

// Highlight renders a heading in the CLI accent color.
func Highlight(format string, a ...any) string {
	return color.New(color.FgCyan, color.Bold).Sprintf(format, a...)
}

// Status renders ok or failed in green or red.
func Status(ok bool) string {
	if ok {
		return color.GreenString("ok")
	}
	return color.RedString("failed")
}
