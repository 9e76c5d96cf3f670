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


package tabular

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"matsearch/internal/errors"
)

// ReadXLSX parses the first sheet of a workbook. Rows before the first
// non-empty row are skipped, that row is the header, and fully empty data
// rows are dropped.
func ReadXLSX(r io.Reader, name string, opts LoadOptions) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", name, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.NoColumns(name)
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	defer rows.Close()

	var t *Table
	for rows.Next() {
		cells, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("failed to read row of %s: %w", name, err)
		}
		if emptyRecord(cells) {
			continue
		}
		if t == nil {
			t, err = NewTable(name, trimTrailing(cells), opts.AllText)
			if err != nil {
				return nil, err
			}
			continue
		}
		t.AppendRecord(cells)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows of %s: %w", name, err)
	}
	if t == nil {
		return nil, errors.NoColumns(name)
	}
	return t, nil
}

func emptyRecord(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// trimTrailing drops blank cells after the last named header cell.
func trimTrailing(cells []string) []string {
	end := len(cells)
	for end > 0 && strings.TrimSpace(cells[end-1]) == "" {
		end--
	}
	return cells[:end]
}
