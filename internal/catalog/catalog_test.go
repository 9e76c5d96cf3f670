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


package catalog

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"matsearch/internal/errors"
	"matsearch/internal/logging"
	"matsearch/internal/query"
	"matsearch/internal/tabular"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	dir := t.TempDir()
	c := New(filepath.Join(dir, "data", "main.db"), filepath.Join(dir, "data", "user.db"), filepath.Join(dir, "uploads"))
	c.now = func() time.Time { return time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC) }
	return c
}

func table(t *testing.T, rows int) *tabular.Table {
	t.Helper()
	tbl, err := tabular.NewTable("fixture", []string{"name", "Ti"}, false)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	for i := 0; i < rows; i++ {
		tbl.AppendRecord([]string{"alloy", "1"})
	}
	return tbl
}

func count(t *testing.T, c *Catalog) int64 {
	t.Helper()
	sess, err := c.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer sess.Close()
	n, err := query.Count(context.Background(), sess.DB)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	return n
}

func workbook(t *testing.T, rows [][]any) []byte {
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
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	return buf.Bytes()
}

func TestSelectMain(t *testing.T) {
	c := newTestCatalog(t)
	if err := c.RebuildMain(context.Background(), table(t, 3)); err != nil {
		t.Fatalf("RebuildMain failed: %v", err)
	}

	v, err := c.Select("main")
	if err != nil || v != VersionMain {
		t.Fatalf("Expected main, got %s (%v)", v, err)
	}
	if n := count(t, c); n != 3 {
		t.Errorf("Expected 3 rows, got %d", n)
	}
}

func TestSelectUserCopiesMain(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)
	if err := c.RebuildMain(ctx, table(t, 3)); err != nil {
		t.Fatalf("RebuildMain failed: %v", err)
	}

	v, err := c.Select("user")
	if err != nil || v != VersionUser {
		t.Fatalf("Expected user, got %s (%v)", v, err)
	}
	if n := count(t, c); n != 3 {
		t.Errorf("Expected user copy with 3 rows, got %d", n)
	}

	// Later changes to main must not reach the user copy.
	if err := c.RebuildMain(ctx, table(t, 5)); err != nil {
		t.Fatalf("RebuildMain failed: %v", err)
	}
	if n := count(t, c); n != 3 {
		t.Errorf("Expected user copy to keep 3 rows, got %d", n)
	}

	c.Select("main")
	if n := count(t, c); n != 5 {
		t.Errorf("Expected main to have 5 rows, got %d", n)
	}
}

func TestSelectUserWithoutMain(t *testing.T) {
	c := newTestCatalog(t)

	_, err := c.Select("user")
	if !errors.IsConfigError(err) {
		t.Fatalf("Expected config error, got %v", err)
	}
	if v, _ := c.Current(); v != VersionMain {
		t.Errorf("Expected pointer unchanged, got %s", v)
	}
	if _, statErr := os.Stat(c.UserPath()); !os.IsNotExist(statErr) {
		t.Error("Expected user dataset not to be created")
	}
}

func TestSelectUnknown(t *testing.T) {
	c := newTestCatalog(t)
	if _, err := c.Select("archive"); !errors.IsValidationError(err) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)
	if err := c.RebuildMain(ctx, table(t, 1)); err != nil {
		t.Fatalf("RebuildMain failed: %v", err)
	}

	data := workbook(t, [][]any{
		{"合金成分", "Ti"},
		{"TiAl", 5},
		{"NiCr", "n/a"},
	})
	res, err := c.Upload(ctx, "new.xlsx", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if res.Current != VersionUser || res.Path != c.UserPath() || res.Warn != "" {
		t.Errorf("Unexpected result %+v", res)
	}
	if n := count(t, c); n != 2 {
		t.Errorf("Expected 2 rows, got %d", n)
	}

	entries, _ := os.ReadDir(c.uploadDir)
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "upload-20260301-123000-") ||
		!strings.HasSuffix(entries[0].Name(), ".xlsx") {
		t.Errorf("Expected stored upload, got %v", entries)
	}
}

func TestUploadLogsCarryUploadName(t *testing.T) {
	var buf bytes.Buffer
	logging.SetGlobalOutput(&buf)
	t.Cleanup(func() { logging.SetGlobalOutput(logging.DefaultConfig().Output) })

	ctx := context.Background()
	c := newTestCatalog(t)
	if err := c.RebuildMain(ctx, table(t, 1)); err != nil {
		t.Fatalf("RebuildMain failed: %v", err)
	}
	data := workbook(t, [][]any{{"合金成分"}, {"TiAl"}})
	if _, err := c.Upload(ctx, "new.xlsx", bytes.NewReader(data)); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "User dataset replaced from upload") && !strings.Contains(line, "upload=upload-20260301-123000-") {
			t.Errorf("Expected upload name on %q", line)
		}
	}
	if !strings.Contains(buf.String(), "User dataset replaced from upload") {
		t.Errorf("Expected replace log line, got %q", buf.String())
	}
}

func TestOnReplace(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	var replaced []string
	c.OnReplace(func(path string) { replaced = append(replaced, path) })

	if err := c.RebuildMain(ctx, table(t, 1)); err != nil {
		t.Fatalf("RebuildMain failed: %v", err)
	}
	if _, err := c.Select("user"); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if _, err := c.Select("user"); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	data := workbook(t, [][]any{{"name"}, {"a"}})
	if _, err := c.Upload(ctx, "new.xlsx", bytes.NewReader(data)); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	expected := []string{c.MainPath(), c.UserPath(), c.UserPath()}
	if strings.Join(replaced, ",") != strings.Join(expected, ",") {
		t.Errorf("Expected replacements %v, got %v", expected, replaced)
	}
}

func TestUploadRejected(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	if _, err := c.Upload(ctx, "data.csv", strings.NewReader("a,b")); !errors.IsValidationError(err) {
		t.Errorf("Expected validation error for .csv, got %v", err)
	}

	_, err := c.Upload(ctx, "legacy.XLS", strings.NewReader("binary"))
	if !errors.IsDependencyError(err) {
		t.Errorf("Expected dependency error for .xls, got %v", err)
	}
	if v, _ := c.Current(); v != VersionMain {
		t.Errorf("Expected pointer unchanged, got %s", v)
	}
}

func TestUploadFallsBackToTemp(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	// A non-empty directory in place of user.db cannot be replaced.
	if err := os.MkdirAll(filepath.Join(c.UserPath(), "blocker"), 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	data := workbook(t, [][]any{{"name", "Ti"}, {"TiAl", 5}})
	res, err := c.Upload(ctx, "new.xlsx", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if res.Current != VersionTemp {
		t.Fatalf("Expected temp, got %s", res.Current)
	}
	if !strings.HasPrefix(res.Warn, "user db replace failed") {
		t.Errorf("Expected warning, got %q", res.Warn)
	}
	if filepath.Ext(res.Path) != ".db" {
		t.Errorf("Expected staged db path, got %s", res.Path)
	}
	if n := count(t, c); n != 1 {
		t.Errorf("Expected 1 row, got %d", n)
	}
	if got := c.Options().Current; got != VersionTemp {
		t.Errorf("Expected options to report temp, got %s", got)
	}
}

func TestOptions(t *testing.T) {
	c := newTestCatalog(t)
	if err := c.RebuildMain(context.Background(), table(t, 1)); err != nil {
		t.Fatalf("RebuildMain failed: %v", err)
	}

	l := c.Options()
	if l.Current != VersionMain {
		t.Errorf("Expected main, got %s", l.Current)
	}
	if len(l.Options) != 2 {
		t.Fatalf("Expected 2 options, got %d", len(l.Options))
	}
	if !l.Options[0].Exists || l.Options[1].Exists {
		t.Errorf("Expected main to exist and user not to, got %+v", l.Options)
	}
	if err := c.Check(); err != nil {
		t.Errorf("Check failed: %v", err)
	}
}

func TestConcurrentReadsAndSwitches(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)
	if err := c.RebuildMain(ctx, table(t, 4)); err != nil {
		t.Fatalf("RebuildMain failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				sess, err := c.Acquire(ctx)
				if err != nil {
					errs <- err
					return
				}
				n, err := query.Count(ctx, sess.DB)
				sess.Close()
				if err != nil {
					errs <- err
					return
				}
				if n != 4 {
					t.Errorf("Expected 4 rows, got %d", n)
				}
			}
		}()
	}
	for i := 0; i < 10; i++ {
		key := "user"
		if i%2 == 0 {
			key = "main"
		}
		if _, err := c.Select(key); err != nil {
			t.Fatalf("Select failed: %v", err)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Reader failed: %v", err)
	}
}
