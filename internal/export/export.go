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
Package export writes selected dataset rows to downloadable files.

Formats:
========

	xlsx     excelize stream writer, single sheet "Sheet1" (default)
	csv      RFC 4180 text, UTF-8
	parquet  Apache Parquet via arrow-go, every column a nullable string,
	         Snappy compressed

Cells are written as they were stored; an empty (NULL) cell becomes an empty
spreadsheet cell, an empty CSV field or a parquet null.
*/
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/xuri/excelize/v2"

	"matsearch/internal/errors"
	"matsearch/internal/storage"
	"matsearch/internal/tabular"
)

// Format is an export file format.
type Format string

const (
	FormatXLSX    Format = "xlsx"
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// DefaultSheet is the sheet written by Write.
const DefaultSheet = "Sheet1"

// ParseFormat parses a format name. An empty name selects xlsx.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "xlsx":
		return FormatXLSX, nil
	case "csv":
		return FormatCSV, nil
	case "parquet":
		return FormatParquet, nil
	default:
		return "", errors.InvalidValue("format", fmt.Sprintf("'%s' is not one of xlsx, csv, parquet", s))
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
}

// Filename returns the download name for an export made at t.
func Filename(f Format, t time.Time) string {
	return fmt.Sprintf("candidates-%s.%s", t.Format("20060102-150405"), f)
}

// Write encodes columns and rows to w in the given format.
func Write(w io.Writer, f Format, columns []string, rows [][]any) error {
	switch f {
	case FormatXLSX:
		return writeXLSX(w, DefaultSheet, columns, rows)
	case FormatCSV:
		return writeCSV(w, columns, rows)
	case FormatParquet:
		return writeParquet(w, columns, rows)
	default:
		return errors.InvalidValue("format", string(f))
	}
}

func newWorkbook(sheet string, columns []string, rows [][]any) (*excelize.File, error) {
	f := excelize.NewFile()
	if sheet != DefaultSheet {
		if err := f.SetSheetName(DefaultSheet, sheet); err != nil {
			f.Close()
			return nil, err
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		f.Close()
		return nil, err
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		f.Close()
		return nil, err
	}

	for n, row := range rows {
		values := make([]any, len(row))
		for i, v := range row {
			values[i] = xlsxValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, n+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := sw.SetRow(cell, values); err != nil {
			f.Close()
			return nil, err
		}
	}
	if err := sw.Flush(); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// xlsxValue returns the cell value for v. Text that is exactly the canonical
// form of a number is written as a number; "007" and "5.0" stay text.
func xlsxValue(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		if f, ok := storage.ParseNumber(x); ok && strconv.FormatFloat(f, 'f', -1, 64) == x {
			return f
		}
		return x
	default:
		return v
	}
}

func writeXLSX(w io.Writer, sheet string, columns []string, rows [][]any) error {
	f, err := newWorkbook(sheet, columns, rows)
	if err != nil {
		return fmt.Errorf("failed to build workbook: %w", err)
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// WriteXLSXFile saves a table as a workbook with a single named sheet.
func WriteXLSXFile(path, sheet string, t *tabular.Table) error {
	rows := make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = r
	}
	f, err := newWorkbook(sheet, t.ColumnNames(), rows)
	if err != nil {
		return fmt.Errorf("failed to build workbook: %w", err)
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

func writeCSV(w io.Writer, columns []string, rows [][]any) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = tabular.Cell(row[i])
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeParquet(w io.Writer, columns []string, rows [][]any) error {
	fields := make([]arrow.Field, len(columns))
	for i, c := range columns {
		fields[i] = arrow.Field{Name: c, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	mem := memory.NewGoAllocator()
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for _, row := range rows {
		for i := range columns {
			sb := b.Field(i).(*array.StringBuilder)
			if i >= len(row) || row[i] == nil {
				sb.AppendNull()
				continue
			}
			sb.Append(tabular.Cell(row[i]))
		}
	}
	rec := b.NewRecord()
	defer rec.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	fw, err := pqarrow.NewFileWriter(schema, w, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("failed to write parquet: %w", err)
	}
	return fw.Close()
}
