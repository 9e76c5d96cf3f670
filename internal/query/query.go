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
Package query implements read access to a materials dataset: the property
inspector that reports numeric ranges, the range query engine, single row
lookup, row counting and the row fetch used by exports.

Every function takes an open dataset handle (see storage.Open) and reads the
table schema on each call, so results always reflect the file as it is now.

Projection:
===========

Search and Lookup return the columns ["id", "name", <table columns...>]:

	id    the SQLite rowid of the row
	name  the value of the first display-name column present in the table
	      (合金成分, 合金成份, name, Name), or "" when there is none

A table column that shares a synthetic name replaces the synthetic value.
*/
package query

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"matsearch/internal/errors"
	"matsearch/internal/storage"
	"matsearch/internal/tabular"
)

// NameAliases are the display-name columns in order of preference.
var NameAliases = []string{"合金成分", "合金成份", "name", "Name"}

// Condition is an inclusive range constraint on one column. A nil bound
// leaves that side open.
type Condition struct {
	Property string   `json:"property"`
	Min      *float64 `json:"min"`
	Max      *float64 `json:"max"`
}

// Result is the projection returned by Search.
type Result struct {
	Columns []string         `json:"columns"`
	Data    []map[string]any `json:"data"`
}

// rowSchema returns the table column names and the name that addresses the
// row id.
func rowSchema(ctx context.Context, db *sql.DB) ([]string, string, error) {
	cols, err := schema(ctx, db)
	if err != nil {
		return nil, "", err
	}
	rowid, ok := storage.RowID(cols)
	if !ok {
		return nil, "", errors.NewStorageError("dataset columns hide every row id name")
	}
	return cols, rowid, nil
}

// schema returns the table column names.
func schema(ctx context.Context, db *sql.DB) ([]string, error) {
	cols, err := storage.Columns(ctx, db)
	if err != nil {
		return nil, errors.NewStorageError("failed to read dataset schema").WithCause(err)
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names, nil
}

// NameColumn returns the first display-name alias present in cols.
func NameColumn(cols []string) (string, bool) {
	for _, alias := range NameAliases {
		for _, c := range cols {
			if c == alias {
				return c, true
			}
		}
	}
	return "", false
}

// isTextLike reports whether a column is excluded from numeric inspection.
func isTextLike(name string) bool {
	if tabular.InferKind(name) != tabular.KindNumeric {
		return true
	}
	for _, alias := range NameAliases {
		if name == alias {
			return true
		}
	}
	return false
}

func projection(rowid string, cols []string) string {
	list := make([]string, 0, len(cols)+2)
	list = append(list, rowid)
	if nameCol, ok := NameColumn(cols); ok {
		list = append(list, storage.QuoteIdent(nameCol))
	} else {
		list = append(list, "''")
	}
	for _, c := range cols {
		list = append(list, storage.QuoteIdent(c))
	}
	return strings.Join(list, ", ")
}

func scanRecords(rows *sql.Rows, columns []string) ([]map[string]any, error) {
	data := []map[string]any{}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		record := make(map[string]any, len(columns))
		for i, c := range columns {
			record[c] = jsonValue(values[i])
		}
		data = append(data, record)
	}
	return data, rows.Err()
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	default:
		return x
	}
}

// Search returns every row satisfying all conditions, in table order.
// Conditions with an empty property are ignored. Cells that do not cast to a
// number never satisfy a condition, and neither does any cell when the
// condition lacks min or max.
func Search(ctx context.Context, db *sql.DB, conds []Condition) (*Result, error) {
	cols, rowid, err := rowSchema(ctx, db)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(cols))
	for _, c := range cols {
		known[c] = true
	}

	var (
		where []string
		args  []any
	)
	for _, cond := range conds {
		if cond.Property == "" {
			continue
		}
		if !known[cond.Property] {
			return nil, errors.ColumnNotFound(cond.Property)
		}
		// A missing bound is bound as NULL, so BETWEEN never holds and the
		// condition matches no row.
		where = append(where, "safe_real("+storage.QuoteIdent(cond.Property)+") BETWEEN ? AND ?")
		args = append(args, bound(cond.Min), bound(cond.Max))
	}

	q := "SELECT " + projection(rowid, cols) + " FROM " + storage.QuoteIdent(storage.TableName)
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.NewStorageError("search failed").WithCause(err)
	}
	defer rows.Close()

	columns := append([]string{"id", "name"}, cols...)
	data, err := scanRecords(rows, columns)
	if err != nil {
		return nil, errors.NewStorageError("search failed").WithCause(err)
	}
	return &Result{Columns: columns, Data: data}, nil
}

func bound(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// Lookup returns the projected row with the given rowid.
func Lookup(ctx context.Context, db *sql.DB, id int64) (map[string]any, error) {
	cols, rowid, err := rowSchema(ctx, db)
	if err != nil {
		return nil, err
	}

	q := "SELECT " + projection(rowid, cols) + " FROM " + storage.QuoteIdent(storage.TableName) + " WHERE " + rowid + " = ?"
	rows, err := db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, errors.NewStorageError("lookup failed").WithCause(err)
	}
	defer rows.Close()

	data, err := scanRecords(rows, append([]string{"id", "name"}, cols...))
	if err != nil {
		return nil, errors.NewStorageError("lookup failed").WithCause(err)
	}
	if len(data) == 0 {
		return nil, errors.NotFound()
	}
	return data[0], nil
}

// Count returns the number of rows in the dataset.
func Count(ctx context.Context, db *sql.DB) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+storage.QuoteIdent(storage.TableName)).Scan(&n)
	if err != nil {
		return 0, errors.NewStorageError("count failed").WithCause(err)
	}
	return n, nil
}

// FetchRows returns the table columns and the rows with the given rowids in
// rowid order. Unknown ids are ignored.
func FetchRows(ctx context.Context, db *sql.DB, ids []int64) ([]string, [][]any, error) {
	cols, rowid, err := rowSchema(ctx, db)
	if err != nil {
		return nil, nil, err
	}
	if len(ids) == 0 {
		return cols, nil, nil
	}

	list := make([]string, len(cols))
	for i, c := range cols {
		list[i] = storage.QuoteIdent(c)
	}
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s) ORDER BY %s",
		strings.Join(list, ", "), storage.QuoteIdent(storage.TableName), rowid, strings.Join(marks, ","), rowid)

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, nil, errors.NewStorageError("fetch failed").WithCause(err)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, errors.NewStorageError("fetch failed").WithCause(err)
		}
		for i := range values {
			values[i] = jsonValue(values[i])
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.NewStorageError("fetch failed").WithCause(err)
	}
	return cols, out, nil
}
