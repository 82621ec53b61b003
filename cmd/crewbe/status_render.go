package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"crewbe/internal/preflight"
	"crewbe/internal/session"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 18
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func preflightLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results)+1)
	blocking := preflight.Blocking(results)
	switch {
	case len(blocking) > 0:
		lines = append(lines, renderStatusLine("Summary", statusError, fmt.Sprintf("%d blocking check(s) failed", len(blocking)), colorize))
	default:
		lines = append(lines, renderStatusLine("Summary", statusOK, "Ready to record", colorize))
	}
	for _, result := range results {
		detail := strings.TrimSpace(result.Detail)
		switch {
		case result.Passed:
			lines = append(lines, renderStatusLine(result.Name, statusOK, detail, colorize))
		case result.Optional:
			lines = append(lines, renderStatusLine(result.Name, statusWarn, detail+" (optional)", colorize))
		default:
			lines = append(lines, renderStatusLine(result.Name, statusError, detail, colorize))
		}
	}
	return lines
}

func phaseStatusKind(phase session.Phase) statusKind {
	switch phase {
	case session.PhaseDone:
		return statusOK
	case session.PhaseFailed:
		return statusError
	case session.PhaseIdle:
		return statusInfo
	default:
		return statusWarn
	}
}
