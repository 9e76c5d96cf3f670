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
Package main is the entry point for the matsearch merge utility.

The merge utility folds a secondary workbook into the reference results
workbook by matching rows on a key column (source_folder by default).

Behavior:
  - Blank target cells of matched rows are filled from the new file; filled
    cells are never overwritten
  - Rows whose key is absent from the base are appended with the base columns
  - New columns named after chemical elements (Ti, Al, Cu) are absorbed
    when -elements is auto

Usage:

	matsearch-merge [options] <new.xlsx>

Options:

	-out <file>         Output workbook (default: results-csv.xlsx)
	-base <file>        Base workbook (default: results-csv.xlsx, else results-csv.xls)
	-key <column>       Key column (default: source_folder)
	-cols <a,b>         Comma-separated target columns (default: 合金成分)
	-elements <mode>    Column absorption: auto, all, none (default: auto)
	-version            Show version information
	-h                  Show help

Exit Codes:

	0  merged and written
	1  invalid arguments
	2  new file missing
	3  new file could not be read
	4  base file could not be read
	5  output could not be written
*/
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"matsearch/internal/banner"
	"matsearch/internal/errors"
	"matsearch/internal/export"
	"matsearch/internal/logging"
	"matsearch/internal/merge"
	"matsearch/internal/tabular"
)

const (
	BaseXLSX  = "results-csv.xlsx"
	BaseXLS   = "results-csv.xls"
	SheetName = "results csv"
)

// Exit codes.
const (
	exitOK = iota
	exitUsage
	exitNewMissing
	exitNewRead
	exitBaseRead
	exitWrite
)

func main() {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		banner.PrintTo(os.Stderr, "matsearch-merge")
	}
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// cli renders status lines for one invocation.
type cli struct {
	stdout, stderr io.Writer
	fail           lipgloss.Style
	ok             lipgloss.Style
	dim            lipgloss.Style
}

func newCLI(stdout, stderr io.Writer) *cli {
	r := lipgloss.NewRenderer(stderr)
	return &cli{
		stdout: stdout,
		stderr: stderr,
		fail:   r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		ok:     r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		dim:    r.NewStyle().Faint(true),
	}
}

func (c *cli) errorf(format string, args ...any) {
	fmt.Fprintf(c.stderr, "%s %s\n", c.fail.Render("✗"), fmt.Sprintf(format, args...))
}

func run(args []string, stdout, stderr io.Writer) int {
	c := newCLI(stdout, stderr)

	fs := flag.NewFlagSet("matsearch-merge", flag.ContinueOnError)
	fs.SetOutput(stderr)
	out := fs.String("out", BaseXLSX, "Output workbook path")
	basePath := fs.String("base", "", "Base workbook (default: "+BaseXLSX+", else "+BaseXLS+")")
	key := fs.String("key", merge.DefaultKey, "Key column used to match rows")
	cols := fs.String("cols", strings.Join(merge.DefaultTargets, ","), "Comma-separated target columns to fill")
	elements := fs.String("elements", string(merge.ModeAuto), "Absorb new columns: auto, all, none")
	verbose := fs.Bool("v", false, "Verbose output")
	showVersion := fs.Bool("version", false, "Show version information")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "matsearch-merge - Merge a workbook into the results workbook")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Usage:")
		fmt.Fprintln(stderr, "  matsearch-merge [options] <new.xlsx>")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Options:")
		fs.PrintDefaults()
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Examples:")
		fmt.Fprintln(stderr, "  matsearch-merge new_result.xlsx                      "+c.dim.Render("# Fill 合金成分 and absorb element columns"))
		fmt.Fprintln(stderr, "  matsearch-merge -elements none -cols 合金成分,备注 new.xlsx")
		fmt.Fprintln(stderr, "  matsearch-merge -out merged.xlsx new.csv.gz")
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitUsage
	}
	if *showVersion {
		fmt.Fprintf(stdout, "matsearch-merge version %s\n", banner.Version)
		return exitOK
	}
	if fs.NArg() != 1 {
		c.errorf("Exactly one new file is required")
		fmt.Fprintf(stderr, "   %s matsearch-merge [options] <new.xlsx>\n", c.dim.Render("Usage:"))
		return exitUsage
	}

	mode, err := merge.ParseMode(*elements)
	if err != nil {
		c.errorf("%s", errors.FormatError(err))
		return exitUsage
	}

	if !*verbose {
		logging.SetGlobalLevel(logging.WARN)
	}
	log := logging.NewLogger("merge")

	newPath := fs.Arg(0)
	if _, err := os.Stat(newPath); err != nil {
		c.errorf("New file not found: %s", newPath)
		return exitNewMissing
	}

	incoming, err := tabular.Load(newPath, tabular.LoadOptions{AllText: true})
	if err != nil {
		c.errorf("Failed to read new file: %s", errors.FormatError(err))
		return exitNewRead
	}
	if incoming.ColumnIndex(*key) < 0 {
		c.errorf("Failed to read new file: %s", errors.FormatError(missingKey(*key)))
		return exitNewRead
	}
	log.Info("Loaded new file", "path", newPath, "rows", len(incoming.Rows))

	src := *basePath
	if src == "" {
		src = defaultBase()
	}
	base, err := tabular.Load(src, tabular.LoadOptions{AllText: true})
	if err != nil {
		c.errorf("Failed to read base file: %s", errors.FormatError(err))
		return exitBaseRead
	}
	if base.ColumnIndex(*key) < 0 {
		c.errorf("Failed to read base file: %s", errors.FormatError(missingKey(*key)))
		return exitBaseRead
	}
	log.Info("Loaded base file", "path", src, "rows", len(base.Rows))

	merged, sum, err := merge.Merge(base, incoming, merge.Options{
		Key:     *key,
		Targets: splitList(*cols),
		Mode:    mode,
	})
	if err != nil {
		c.errorf("Merge failed: %s", errors.FormatError(err))
		return exitNewRead
	}
	log.Info("Merged",
		"updated", sum.Updated,
		"appended", sum.Appended,
		"absorbed", sum.Absorbed,
		"added_columns", strings.Join(sum.Added, ","),
	)

	if err := export.WriteXLSXFile(*out, SheetName, merged); err != nil {
		c.errorf("Failed to write result: %s", errors.FormatError(err))
		return exitWrite
	}

	fmt.Fprintf(stdout, "%s %s rows=%d cols=%d\n", c.ok.Render("✓"), *out, len(merged.Rows), len(merged.Columns))
	return exitOK
}

// defaultBase prefers the xlsx workbook and falls back to the legacy xls.
func defaultBase() string {
	if _, err := os.Stat(BaseXLSX); err == nil {
		return BaseXLSX
	}
	if _, err := os.Stat(BaseXLS); err == nil {
		return BaseXLS
	}
	return BaseXLSX
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func missingKey(key string) *errors.AppError {
	return errors.NewValidationError("missing key column " + key).
		WithHint("Pass -key with the column that identifies each row")
}
