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


package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"matsearch/internal/errors"
	"matsearch/internal/logging"
	"matsearch/internal/tabular"
)

var log = logging.NewLogger("storage")

func columnType(kind tabular.Kind, primary bool) string {
	switch kind {
	case tabular.KindIdentifier:
		if primary {
			return "INTEGER PRIMARY KEY"
		}
		return "INTEGER"
	case tabular.KindText:
		return "TEXT"
	default:
		return "REAL"
	}
}

// Materialize replaces the materials table in db with the contents of t.
func Materialize(ctx context.Context, db *sql.DB, t *tabular.Table) error {
	if len(t.Columns) == 0 {
		return errors.NoColumns(t.Name)
	}
	if _, ok := RowID(t.ColumnNames()); !ok {
		return errors.InvalidValue("columns", "rowid, _rowid_ and oid cannot all be column names")
	}

	defs := make([]string, len(t.Columns))
	names := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	hasPrimary := false
	for i, c := range t.Columns {
		primary := c.Kind == tabular.KindIdentifier && !hasPrimary
		if primary {
			hasPrimary = true
		}
		names[i] = QuoteIdent(c.Name)
		defs[i] = names[i] + " " + columnType(c.Kind, primary)
		marks[i] = "?"
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	table := QuoteIdent(TableName)
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return fmt.Errorf("failed to drop table: %w", err)
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(names, ", "), strings.Join(marks, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(t.Columns))
	for n, row := range t.Rows {
		for i, c := range t.Columns {
			var v any
			if i < len(row) {
				v = row[i]
			}
			if args[i], err = cellValue(c, v); err != nil {
				return fmt.Errorf("row %d: %w", n+1, err)
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", n+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	log.Debug("Table materialized", "source", t.Name, "columns", len(t.Columns), "rows", len(t.Rows))
	return nil
}

// cellValue converts a loaded cell to the value bound for its column kind.
// Numeric cells that do not parse are stored as text.
func cellValue(c tabular.Column, v any) (any, error) {
	if tabular.IsBlank(v) {
		return nil, nil
	}
	s := strings.TrimSpace(tabular.Cell(v))
	switch c.Kind {
	case tabular.KindIdentifier:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		if f, ok := ParseNumber(s); ok && f == float64(int64(f)) {
			return int64(f), nil
		}
		return nil, errors.InvalidValue(c.Name, fmt.Sprintf("'%s' is not an integer", s))
	case tabular.KindNumeric:
		if f, ok := ParseNumber(s); ok {
			return f, nil
		}
		return tabular.Cell(v), nil
	default:
		return tabular.Cell(v), nil
	}
}

// BuildFile creates a new dataset file at path holding t. Any existing file
// is removed first.
func BuildFile(ctx context.Context, path string, t *tabular.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.IOError("failed to create data directory", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.IOError("failed to remove old dataset", err)
	}

	db, err := Open(ctx, path)
	if err != nil {
		return errors.IOError("failed to create dataset", err)
	}
	defer db.Close()

	if err := Materialize(ctx, db, t); err != nil {
		return err
	}
	log.Info("Dataset built", "path", path, "rows", len(t.Rows))
	return nil
}

// CopyFile copies a dataset file byte for byte. The destination is written
// to a temporary file in the same directory and renamed into place.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
