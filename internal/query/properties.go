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


package query

import (
	"context"
	"database/sql"

	"matsearch/internal/errors"
	"matsearch/internal/storage"
	"matsearch/internal/tabular"
)

// Range is the observed numeric range of a column.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Properties returns the range of every purely numeric column. A column is
// reported when it has at least one non-empty value and every non-empty
// value parses as a number. Identifier and display-name columns are skipped.
func Properties(ctx context.Context, db *sql.DB) (map[string]Range, error) {
	cols, err := schema(ctx, db)
	if err != nil {
		return nil, err
	}

	props := make(map[string]Range)
	for _, col := range cols {
		if isTextLike(col) {
			continue
		}
		r, ok, err := columnRange(ctx, db, col)
		if err != nil {
			return nil, err
		}
		if ok {
			props[col] = r
		}
	}
	return props, nil
}

func columnRange(ctx context.Context, db *sql.DB, col string) (Range, bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT "+storage.QuoteIdent(col)+" FROM "+storage.QuoteIdent(storage.TableName))
	if err != nil {
		return Range{}, false, errors.NewStorageError("failed to inspect column").WithDetail(col).WithCause(err)
	}
	defer rows.Close()

	var (
		r     Range
		found bool
	)
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return Range{}, false, errors.NewStorageError("failed to inspect column").WithDetail(col).WithCause(err)
		}
		if tabular.IsBlank(v) {
			continue
		}
		f, ok := storage.NumericValue(v)
		if !ok {
			return Range{}, false, nil
		}
		if !found {
			r = Range{Min: f, Max: f}
			found = true
			continue
		}
		r.Min = min(r.Min, f)
		r.Max = max(r.Max, f)
	}
	if err := rows.Err(); err != nil {
		return Range{}, false, errors.NewStorageError("failed to inspect column").WithDetail(col).WithCause(err)
	}
	return r, found, nil
}
