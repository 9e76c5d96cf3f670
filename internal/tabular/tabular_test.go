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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"

	"matsearch/internal/compression"
	"matsearch/internal/errors"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func writeWorkbook(t *testing.T, path string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		r := row
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatalf("SetSheetRow failed: %v", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs failed: %v", err)
	}
}

func TestInferKind(t *testing.T) {
	tests := []struct {
		name string
		want Kind
	}{
		{"id", KindIdentifier},
		{"ID", KindIdentifier},
		{" Id ", KindIdentifier},
		{"name", KindText},
		{"Name", KindText},
		{"CATEGORY", KindText},
		{"Ti", KindNumeric},
		{"合金成分", KindNumeric},
		{"identifier", KindNumeric},
	}

	for _, tt := range tests {
		if got := InferKind(tt.name); got != tt.want {
			t.Errorf("InferKind(%q): expected %s, got %s", tt.name, tt.want, got)
		}
	}
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "materials.csv", []byte("\xef\xbb\xbfid,name,Ti,Al\n1,TiAl,5.5,\n2,NiCr,,3\n"))

	table, err := Load(path, LoadOptions{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if table.Columns[0].Name != "id" {
		t.Errorf("Expected BOM to be stripped, got column %q", table.Columns[0].Name)
	}
	wantKinds := []Kind{KindIdentifier, KindText, KindNumeric, KindNumeric}
	for i, k := range wantKinds {
		if table.Columns[i].Kind != k {
			t.Errorf("Column %s: expected %s, got %s", table.Columns[i].Name, k, table.Columns[i].Kind)
		}
	}
	if len(table.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(table.Rows))
	}
	if table.Rows[0][2] != "5.5" {
		t.Errorf("Expected 5.5, got %v", table.Rows[0][2])
	}
	if table.Rows[0][3] != nil {
		t.Errorf("Expected empty cell to be nil, got %v", table.Rows[0][3])
	}
}

func TestLoadCSVAllText(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "materials.csv", []byte("id,Ti\n1,2\n"))

	table, err := Load(path, LoadOptions{AllText: true})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	for _, c := range table.Columns {
		if c.Kind != KindText {
			t.Errorf("Column %s: expected text, got %s", c.Name, c.Kind)
		}
	}
}

func TestLoadCSVEncoding(t *testing.T) {
	encoded, err := simplifiedchinese.GBK.NewEncoder().String("合金成分,Ti\n钛铝,5\n")
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	dir := t.TempDir()
	path := writeFile(t, dir, "materials.csv", []byte(encoded))

	table, err := Load(path, LoadOptions{Encoding: "gbk"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if table.Columns[0].Name != "合金成分" {
		t.Errorf("Expected 合金成分, got %q", table.Columns[0].Name)
	}
	if table.Rows[0][0] != "钛铝" {
		t.Errorf("Expected 钛铝, got %v", table.Rows[0][0])
	}

	if _, err := Load(path, LoadOptions{Encoding: "ebcdic"}); !errors.IsValidationError(err) {
		t.Errorf("Expected validation error for unknown encoding, got %v", err)
	}
}

func TestSupportedEncodings(t *testing.T) {
	for _, name := range EncodingNames {
		if !IsSupportedEncoding(name) {
			t.Errorf("Expected %s to be supported", name)
		}
	}
	for _, name := range []string{"", "UTF-8", " Latin1 "} {
		if !IsSupportedEncoding(name) {
			t.Errorf("Expected %q to be supported", name)
		}
	}
	if IsSupportedEncoding("ebcdic") {
		t.Error("Expected ebcdic to be rejected")
	}
}

func TestLoadCompressedCSV(t *testing.T) {
	var buf bytes.Buffer
	w, err := compression.NewWriter(compression.AlgorithmZstd, &buf)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	w.Write([]byte("name,Ti\nTiAl,5\nNiCr,7\n"))
	w.Close()

	dir := t.TempDir()
	path := writeFile(t, dir, "materials.csv.zst", buf.Bytes())

	table, err := Load(path, LoadOptions{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if table.Name != "materials.csv" {
		t.Errorf("Expected name materials.csv, got %s", table.Name)
	}
	if len(table.Rows) != 2 {
		t.Errorf("Expected 2 rows, got %d", len(table.Rows))
	}
}

func TestLoadXLSX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results-csv.xlsx")
	writeWorkbook(t, path, [][]any{
		{},
		{"source_folder", "合金成分", "", "Ti"},
		{"a", "TiAl", "x", 5},
		{},
		{"b", nil, nil, 2.5},
	})

	table, err := Load(path, LoadOptions{AllText: true})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := []string{"source_folder", "合金成分", "Unnamed: 2", "Ti"}
	got := table.ColumnNames()
	if len(got) != len(want) {
		t.Fatalf("Expected columns %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Column %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	if len(table.Rows) != 2 {
		t.Fatalf("Expected empty row to be skipped, got %d rows", len(table.Rows))
	}
	if table.Rows[0][3] != "5" {
		t.Errorf("Expected raw value 5, got %v", table.Rows[0][3])
	}
	if table.Rows[1][1] != nil {
		t.Errorf("Expected nil for empty cell, got %v", table.Rows[1][1])
	}
	if table.Rows[1][3] != "2.5" {
		t.Errorf("Expected 2.5, got %v", table.Rows[1][3])
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.csv"), LoadOptions{}); !errors.IsConfigError(err) {
		t.Errorf("Expected config error for missing file, got %v", err)
	}

	xls := writeFile(t, dir, "legacy.xls", []byte("not a workbook"))
	if _, err := Load(xls, LoadOptions{}); !errors.IsDependencyError(err) {
		t.Errorf("Expected dependency error for .xls, got %v", err)
	}

	other := writeFile(t, dir, "notes.pdf", []byte("%PDF"))
	if _, err := Load(other, LoadOptions{}); !errors.IsValidationError(err) {
		t.Errorf("Expected validation error for unknown extension, got %v", err)
	}

	empty := writeFile(t, dir, "empty.csv", nil)
	if _, err := Load(empty, LoadOptions{}); errors.GetCode(err) != errors.ErrCodeNoColumns {
		t.Errorf("Expected no columns error, got %v", err)
	}

	dup := writeFile(t, dir, "dup.csv", []byte("Ti,Ti\n1,2\n"))
	if _, err := Load(dup, LoadOptions{}); errors.GetCode(err) != errors.ErrCodeDuplicateColumn {
		t.Errorf("Expected duplicate column error, got %v", err)
	}
}

func TestTableHelpers(t *testing.T) {
	table, err := NewTable("t", []string{"a", "b"}, false)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	table.AppendRecord([]string{"1"})
	table.AppendRecord([]string{"1", "2", "3"})

	if len(table.Rows[0]) != 2 || table.Rows[0][1] != nil {
		t.Errorf("Expected short record to be padded, got %v", table.Rows[0])
	}
	if len(table.Rows[1]) != 2 {
		t.Errorf("Expected long record to be truncated, got %v", table.Rows[1])
	}

	idx := table.AddColumn("c", KindText)
	if idx != 2 || table.ColumnIndex("c") != 2 {
		t.Errorf("Expected new column at 2, got %d", idx)
	}
	for _, row := range table.Rows {
		if len(row) != 3 {
			t.Errorf("Expected rows widened to 3, got %d", len(row))
		}
	}

	if !IsBlank("  ") || IsBlank("x") || !IsBlank(nil) {
		t.Error("IsBlank returned unexpected result")
	}
	if Cell(5.0) != "5" {
		t.Errorf("Expected 5, got %s", Cell(5.0))
	}
}
