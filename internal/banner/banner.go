/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


/*
Package banner provides the startup banner display for matsearch.

The ASCII art logo is embedded from banner.txt at compile time. Styling goes
through a lipgloss renderer bound to the output writer, so colors are only
emitted when the writer is a terminal that supports them.

Usage:
======

	banner.PrintServerWithConfig(cfg)
*/
package banner

import (
	_ "embed" // Required for the //go:embed directive
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"matsearch/internal/config"
)

//go:embed banner.txt
var banner string

// Version information for the matsearch application.
const (
	Version   = "01.26.14"
	Copyright = "(c)2026 Firefly Software Solutions Inc"
	License   = "Licensed under Apache 2.0"
)

const lineWidth = 78

type styles struct {
	logo    lipgloss.Style
	title   lipgloss.Style
	dim     lipgloss.Style
	accent  lipgloss.Style
	ok      lipgloss.Style
	section lipgloss.Style
	warn    lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		logo:    r.NewStyle().Foreground(lipgloss.Color("1")),
		title:   r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		dim:     r.NewStyle().Faint(true),
		accent:  r.NewStyle().Foreground(lipgloss.Color("3")),
		ok:      r.NewStyle().Foreground(lipgloss.Color("2")),
		section: r.NewStyle().Foreground(lipgloss.Color("6")).Bold(true),
		warn:    r.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
	}
}

// Print displays the startup banner with version and copyright information.
func Print() {
	PrintTo(os.Stdout, "matsearch")
}

// PrintTo writes the banner for the named tool to w.
func PrintTo(w io.Writer, tool string) {
	s := newStyles(w)
	fmt.Fprintln(w, s.logo.Render(strings.TrimRight(banner, "\n")))
	fmt.Fprintln(w, s.title.Render(fmt.Sprintf(":: %s ::", tool))+"  "+s.dim.Render("(v"+Version+")"))
	fmt.Fprintln(w, s.ok.Render(Copyright))
	fmt.Fprintln(w, s.ok.Render(License))
	fmt.Fprintln(w)
}

// PrintServerWithConfig prints the server banner with the effective
// configuration.
func PrintServerWithConfig(cfg *config.Config) {
	PrintServerWithConfigTo(os.Stdout, cfg)
}

// PrintServerWithConfigTo writes the server banner with configuration to w.
func PrintServerWithConfigTo(w io.Writer, cfg *config.Config) {
	s := newStyles(w)

	fmt.Fprintln(w)
	fmt.Fprintln(w, s.logo.Render(strings.TrimRight(banner, "\n")))
	fmt.Fprintln(w, s.title.Render(":: matsearch server ::")+"          "+s.dim.Render("(v"+Version+")"))
	fmt.Fprintln(w, s.dim.Render("  Materials dataset search and export"))
	fmt.Fprintln(w)

	fmt.Fprint(w, "  "+s.dim.Render("Config: "))
	if cfg.ConfigFile != "" {
		fmt.Fprintln(w, s.accent.Render(cfg.ConfigFile))
	} else {
		fmt.Fprintln(w, s.dim.Render("defaults + environment"))
	}
	fmt.Fprintln(w)

	printSectionHeader(w, s, "Server")
	printRow3(w,
		fmtKV(s, "Port", s.ok.Render(fmt.Sprintf(":%d", cfg.Port))),
		fmtKV(s, "Log", cfg.LogLevel),
		fmtKV(s, "GOMAXPROCS", fmt.Sprintf("%d", runtime.GOMAXPROCS(0))))
	printRow3(w,
		fmtKV(s, "Health", fmtEnabled(s, cfg.Health.Addr, cfg.Health.Enabled)),
		fmtKV(s, "Metrics", fmtEnabled(s, cfg.Metrics.Addr, cfg.Metrics.Enabled)),
		fmtKV(s, "Upload", formatBytes(int64(cfg.MaxUploadMB)*1024*1024)))
	fmt.Fprintln(w)

	printSectionHeader(w, s, "Datasets")
	printRow2(w, fmtKV(s, "Data", cfg.DataDir), fmtKV(s, "Uploads", cfg.UploadDir))
	source := cfg.PrimarySource()
	if source == "" {
		source = s.warn.Render("none found")
	}
	printRow2(w, fmtKV(s, "Source", source), fmtKV(s, "Encoding", cfg.SourceEncoding))
	fmt.Fprintln(w)

	fmt.Fprintln(w, s.dim.Render("  "+Copyright))
	fmt.Fprintln(w)
	printLogSeparator(w, s)
}

func printLogSeparator(w io.Writer, s styles) {
	text := " LOGS START HERE "
	padding := (lineWidth - len(text) - 4) / 2
	if padding < 0 {
		padding = 0
	}
	line := strings.Repeat("-", padding)
	fmt.Fprintf(w, "  %s%s%s\n", s.accent.Render("vv"+line), s.warn.Render(text), s.accent.Render(line+"vv"))
	fmt.Fprintln(w)
}

func printSectionHeader(w io.Writer, s styles, title string) {
	rightPad := lineWidth - 2 - len(title) - 4
	if rightPad < 0 {
		rightPad = 0
	}
	fmt.Fprintf(w, "  %s%s%s\n", s.dim.Render("--[ "), s.section.Render(title), s.dim.Render(" ]"+strings.Repeat("-", rightPad)))
}

func fmtKV(s styles, key, value string) string {
	return s.dim.Render(key+":") + " " + value
}

func fmtEnabled(s styles, addr string, enabled bool) string {
	if enabled {
		return s.ok.Render(addr)
	}
	return s.dim.Render("off")
}

func printRow3(w io.Writer, col1, col2, col3 string) {
	fmt.Fprintf(w, "  %s %s %s\n", pad(col1, 30), pad(col2, 26), col3)
}

func printRow2(w io.Writer, col1, col2 string) {
	fmt.Fprintf(w, "  %s %s\n", pad(col1, 40), col2)
}

// pad right-pads a possibly styled string to a visible width.
func pad(s string, width int) string {
	if n := lipgloss.Width(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.0f%cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
