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
	"io"
	"os"
	"path/filepath"
	"strings"

	"matsearch/internal/compression"
	"matsearch/internal/errors"
)

// LoadOptions controls how a source is parsed.
type LoadOptions struct {
	// AllText makes every column text regardless of its name.
	AllText bool
	// Encoding of delimited sources: utf-8 (default), gbk, gb18030 or latin1.
	Encoding string
}

// Format identifies a source format by the extension of its file.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// DetectFormat returns the format of path after removing any compression
// suffix.
func DetectFormat(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(compression.Base(path))) {
	case ".csv", ".txt":
		return FormatCSV, true
	case ".tsv":
		return FormatTSV, true
	case ".xlsx", ".xlsm":
		return FormatXLSX, true
	case ".xls":
		return FormatXLS, true
	default:
		return "", false
	}
}

// Load reads the source at path into a table.
func Load(path string, opts LoadOptions) (*Table, error) {
	format, ok := DetectFormat(path)
	if !ok {
		return nil, errors.UnsupportedFile(filepath.Base(path), ".csv, .tsv, .xlsx or .xls")
	}
	if format == FormatXLS {
		return nil, xlsUnsupported()
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.SourceNotFound(path)
		}
		return nil, errors.IOError("failed to open source", err)
	}
	defer f.Close()

	return LoadReader(f, path, format, opts)
}

// LoadReader reads a source of the given format from r. The name is used
// for compression detection and error messages.
func LoadReader(r io.Reader, name string, format Format, opts LoadOptions) (*Table, error) {
	dec, err := compression.NewReader(compression.Detect(name), r)
	if err != nil {
		return nil, errors.IOError("failed to decompress source", err)
	}
	defer dec.Close()

	base := filepath.Base(compression.Base(name))
	switch format {
	case FormatCSV:
		return ReadCSV(dec, base, ',', opts)
	case FormatTSV:
		return ReadCSV(dec, base, '\t', opts)
	case FormatXLSX:
		return ReadXLSX(dec, base, opts)
	case FormatXLS:
		return nil, xlsUnsupported()
	default:
		return nil, errors.UnsupportedFile(base, ".csv, .tsv, .xlsx or .xls")
	}
}

func xlsUnsupported() error {
	return errors.MissingDependency(".xls", "Re-save the workbook as .xlsx")
}
