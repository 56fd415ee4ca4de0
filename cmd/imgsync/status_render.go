package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

type style int

const (
	stylePlain style = iota
	styleCyan
	styleGreen
	styleYellow
	styleRed
	styleBlue
)

const ansiReset = "\x1b[0m"

var styleCodes = map[style]string{
	styleCyan:   "\x1b[36m",
	styleGreen:  "\x1b[32m",
	styleYellow: "\x1b[33m",
	styleRed:    "\x1b[31m",
	styleBlue:   "\x1b[34m",
}

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

// colorize wraps text in the ANSI sequence for s. Plain text passes through.
func colorize(s style, text string) string {
	code, ok := styleCodes[s]
	if !ok || text == "" {
		return text
	}
	return code + text + ansiReset
}

func renderStatusLine(label string, kind statusKind, message string, color bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if color {
		return colorize(statusKindStyle(kind), base)
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

func statusKindStyle(kind statusKind) style {
	switch kind {
	case statusOK:
		return styleGreen
	case statusWarn:
		return styleYellow
	case statusError:
		return styleRed
	case statusInfo:
		return styleBlue
	default:
		return stylePlain
	}
}

func renderSectionHeader(title string, color bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if color {
		line = colorize(styleBlue, line)
		rule = colorize(styleBlue, rule)
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
