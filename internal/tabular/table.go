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
Package tabular loads materials datasets from delimited text and spreadsheet
sources into an in-memory table of ordered, named columns.

Source Formats:
===============

  - Delimited text (.csv, .tsv, .txt), optionally compressed (see package
    compression) and optionally in a legacy encoding (gbk, gb18030, latin1).
  - Office Open XML workbooks (.xlsx, .xlsm). Only the first sheet is read and
    the first non-empty row holds the column names.
  - Legacy binary workbooks (.xls) are recognized but no engine is available
    to read them; loading one returns a dependency error.

Column Kinds:
=============

Every column carries a coarse kind used when the table is materialized:

	id             -> KindIdentifier (INTEGER PRIMARY KEY)
	name, category -> KindText
	anything else  -> KindNumeric (REAL, NULL for empty cells)

Spreadsheet sources and uploads are loaded with LoadOptions.AllText, which
makes every column text. Numeric-ness is then decided at query time.
*/
package tabular

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"matsearch/internal/errors"
)

// Kind is the coarse storage kind of a column.
type Kind int

const (
	// KindNumeric columns store REAL values with NULL for empty cells.
	KindNumeric Kind = iota
	// KindIdentifier is the explicit "id" surrogate key.
	KindIdentifier
	// KindText columns store their cells verbatim.
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindIdentifier:
		return "identifier"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Column is a named, kinded column of a table.
type Column struct {
	Name string
	Kind Kind
}

// Row holds cell values aligned to the table's columns. A cell is either a
// string or nil for an empty cell.
type Row []any

// Table is an ordered set of columns and the rows that populate them.
type Table struct {
	Name    string
	Columns []Column
	Rows    []Row
}

// InferKind returns the kind implied by a column name. Matching ignores case
// and surrounding whitespace.
func InferKind(name string) Kind {
	switch cases.Fold().String(strings.TrimSpace(name)) {
	case "id":
		return KindIdentifier
	case "name", "category":
		return KindText
	default:
		return KindNumeric
	}
}

// NewTable builds an empty table from a header row. Blank header cells are
// named "Unnamed: <index>" and a repeated name is an error.
func NewTable(name string, header []string, allText bool) (*Table, error) {
	if len(header) == 0 {
		return nil, errors.NoColumns(name)
	}

	t := &Table{Name: name, Columns: make([]Column, 0, len(header))}
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		if strings.TrimSpace(h) == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		if seen[h] {
			return nil, errors.DuplicateColumn(h)
		}
		seen[h] = true

		kind := KindText
		if !allText {
			kind = InferKind(h)
		}
		t.Columns = append(t.Columns, Column{Name: h, Kind: kind})
	}
	return t, nil
}

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// AddColumn appends a column and extends every existing row with an empty
// cell. It returns the new column's index.
func (t *Table) AddColumn(name string, kind Kind) int {
	t.Columns = append(t.Columns, Column{Name: name, Kind: kind})
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], nil)
	}
	return len(t.Columns) - 1
}

// AppendRecord adds a row built from raw string cells. Empty cells become
// nil; the record is padded or truncated to the table width.
func (t *Table) AppendRecord(record []string) {
	row := make(Row, len(t.Columns))
	for i := range row {
		if i < len(record) && record[i] != "" {
			row[i] = record[i]
		}
	}
	t.Rows = append(t.Rows, row)
}

// Cell returns the string form of a cell, or "" when it is empty.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}

// IsBlank reports whether a cell is empty or whitespace only.
func IsBlank(v any) bool {
	return strings.TrimSpace(Cell(v)) == ""
}
