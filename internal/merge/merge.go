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
Package merge folds a secondary results table into the reference results
table, matching rows by a key column.

Merge Rules:
============

 1. Keys are compared as trimmed strings. A blank key never matches and a
    new row with a blank key is never appended. When the new table repeats
    a key, its first row wins.
 2. Target columns (default 合金成分) that exist in the new table are created
    in the base when missing. A base cell is filled from the matched new row
    only when the base cell is blank; nothing is overwritten.
 3. New rows whose key is not in the base are appended. Only base columns are
    kept; cells the new row lacks are empty.
 4. Finally, columns chosen by Mode are absorbed: created in the base when
    missing and filled by key wherever the base cell is blank.

	auto  columns named after a chemical element symbol (Ti, AL, cu, ...)
	all   every non-key column of the new table
	none  nothing
*/
package merge

import (
	"fmt"
	"strings"

	"matsearch/internal/errors"
	"matsearch/internal/tabular"
)

// DefaultKey is the column that identifies a result row.
const DefaultKey = "source_folder"

// DefaultTargets are the columns updated from the new table by default.
var DefaultTargets = []string{"合金成分"}

// Mode selects which new-table columns are absorbed into the base.
type Mode string

const (
	ModeAuto Mode = "auto"
	ModeAll  Mode = "all"
	ModeNone Mode = "none"
)

// ParseMode parses an element mode. An empty string selects auto.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeAll:
		return ModeAll, nil
	case ModeNone:
		return ModeNone, nil
	default:
		return "", errors.InvalidValue("elements", fmt.Sprintf("'%s' is not one of auto, all, none", s))
	}
}

// Options configures a merge.
type Options struct {
	Key     string
	Targets []string
	Mode    Mode
}

// Summary reports what a merge changed.
type Summary struct {
	Updated  int
	Appended int
	Absorbed int
	Added    []string
}

// Merge returns a new table holding base with incoming folded in. Neither
// input is modified.
func Merge(base, incoming *tabular.Table, opts Options) (*tabular.Table, Summary, error) {
	var sum Summary
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.Targets == nil {
		opts.Targets = DefaultTargets
	}
	if opts.Mode == "" {
		opts.Mode = ModeAuto
	}

	baseKey := base.ColumnIndex(opts.Key)
	if baseKey < 0 {
		return nil, sum, errors.NewValidationError("base missing key column: " + opts.Key)
	}
	newKey := incoming.ColumnIndex(opts.Key)
	if newKey < 0 {
		return nil, sum, errors.NewValidationError("new file missing key column: " + opts.Key)
	}

	out := clone(base)
	for _, row := range out.Rows {
		row[baseKey] = normalizeKey(row[baseKey])
	}

	// First occurrence of each key in the new table, in file order.
	byKey := make(map[string]tabular.Row)
	var order []string
	for _, row := range incoming.Rows {
		k := tabular.Cell(normalizeKey(row[newKey]))
		if k == "" {
			continue
		}
		if _, dup := byKey[k]; dup {
			continue
		}
		byKey[k] = row
		order = append(order, k)
	}

	fill := func(col string) int {
		src := incoming.ColumnIndex(col)
		dst := out.ColumnIndex(col)
		if dst < 0 {
			dst = out.AddColumn(col, tabular.KindText)
			sum.Added = append(sum.Added, col)
		}
		filled := 0
		for _, row := range out.Rows {
			k := tabular.Cell(row[baseKey])
			nr, ok := byKey[k]
			if k == "" || !ok {
				continue
			}
			if tabular.IsBlank(row[dst]) && !tabular.IsBlank(nr[src]) {
				row[dst] = nr[src]
				filled++
			}
		}
		return filled
	}

	for _, target := range opts.Targets {
		if incoming.ColumnIndex(target) < 0 || target == opts.Key {
			continue
		}
		sum.Updated += fill(target)
	}

	existing := make(map[string]bool, len(out.Rows))
	for _, row := range out.Rows {
		if k := tabular.Cell(row[baseKey]); k != "" {
			existing[k] = true
		}
	}
	for _, k := range order {
		if existing[k] {
			continue
		}
		src := byKey[k]
		row := make(tabular.Row, len(out.Columns))
		for i, c := range out.Columns {
			if j := incoming.ColumnIndex(c.Name); j >= 0 && j < len(src) {
				row[i] = src[j]
			}
		}
		row[baseKey] = k
		out.Rows = append(out.Rows, row)
		existing[k] = true
		sum.Appended++
	}

	for _, col := range absorbed(incoming, opts) {
		sum.Absorbed += fill(col)
	}
	return out, sum, nil
}

// absorbed returns the new-table columns picked by the element mode.
func absorbed(incoming *tabular.Table, opts Options) []string {
	var cols []string
	for _, c := range incoming.Columns {
		if c.Name == opts.Key {
			continue
		}
		switch opts.Mode {
		case ModeAll:
			cols = append(cols, c.Name)
		case ModeAuto:
			if IsElement(c.Name) {
				cols = append(cols, c.Name)
			}
		}
	}
	return cols
}

func normalizeKey(v any) any {
	if v == nil {
		return nil
	}
	k := strings.TrimSpace(tabular.Cell(v))
	if k == "" {
		return nil
	}
	return k
}

func clone(t *tabular.Table) *tabular.Table {
	out := &tabular.Table{
		Name:    t.Name,
		Columns: append([]tabular.Column(nil), t.Columns...),
		Rows:    make([]tabular.Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		row := make(tabular.Row, len(t.Columns))
		copy(row, r)
		out.Rows[i] = row
	}
	return out
}
