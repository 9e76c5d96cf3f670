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
Package storage materializes loaded tables into SQLite row stores.

Each dataset version (main, user or a staged upload) is one SQLite file that
holds a single table named "materials". Tables are always built wholesale:
the previous table is dropped and every row is inserted again inside one
transaction.

Numeric Casting:
================

The driver is extended with a deterministic scalar function:

	safe_real(value) -> REAL or NULL

It returns the numeric value of integers, reals and numeric text (surrounding
whitespace ignored) and NULL for everything else. Range predicates are written
as safe_real("col") BETWEEN ? AND ?, so cells that do not cast to a number
fall out of the result instead of comparing as zero.
*/
package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"strings"

	"modernc.org/sqlite"
)

// TableName is the name of the single table in every dataset file.
const TableName = "materials"

// DriverName is the database/sql driver used for dataset files.
const DriverName = "sqlite"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction("safe_real", 1, safeReal)
}

func safeReal(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		if f, ok := ParseNumber(v); ok {
			return f, nil
		}
	case []byte:
		if f, ok := ParseNumber(string(v)); ok {
			return f, nil
		}
	}
	return nil, nil
}

// ParseNumber parses a decimal or scientific number with surrounding
// whitespace removed. NaN and infinities are rejected.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// NumericValue converts a value scanned from a dataset into a number.
func NumericValue(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, !math.IsNaN(x) && !math.IsInf(x, 0)
	case string:
		return ParseNumber(x)
	case []byte:
		return ParseNumber(string(x))
	default:
		return 0, false
	}
}

// QuoteIdent quotes an identifier for use in SQL. Embedded double quotes are
// doubled, so any column name from a source file is safe to interpolate.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// rowIDNames are the names SQLite accepts for the implicit row id. A declared
// column of the same name hides that name.
var rowIDNames = []string{"rowid", "_rowid_", "oid"}

// RowID returns a name for the row id that no column in cols hides.
func RowID(cols []string) (string, bool) {
	for _, name := range rowIDNames {
		hidden := false
		for _, c := range cols {
			if strings.EqualFold(c, name) {
				hidden = true
				break
			}
		}
		if !hidden {
			return name, true
		}
	}
	return "", false
}

// Open opens a dataset file. Each handle holds at most one connection.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return db, nil
}

// ColumnInfo describes one column of the materials table.
type ColumnInfo struct {
	Name string
	Type string
	PK   bool
}

// Columns returns the columns of the materials table in declaration order.
func Columns(ctx context.Context, db *sql.DB) ([]ColumnInfo, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+QuoteIdent(TableName)+")")
	if err != nil {
		return nil, fmt.Errorf("failed to read table info: %w", err)
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan table info: %w", err)
		}
		cols = append(cols, ColumnInfo{Name: name, Type: typ, PK: pk > 0})
	}
	return cols, rows.Err()
}
