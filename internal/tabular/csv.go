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
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"

	"matsearch/internal/errors"
)

// encodings maps every accepted encoding name to its decoder. UTF-8 input
// has a leading byte order mark removed.
var encodings = map[string]encoding.Encoding{
	"utf-8":      unicode.UTF8BOM,
	"utf8":       unicode.UTF8BOM,
	"gbk":        simplifiedchinese.GBK,
	"gb18030":    simplifiedchinese.GB18030,
	"latin1":     charmap.ISO8859_1,
	"iso-8859-1": charmap.ISO8859_1,
}

// EncodingNames lists the accepted encoding names in display order.
var EncodingNames = []string{"utf-8", "utf8", "gbk", "gb18030", "latin1", "iso-8859-1"}

// IsSupportedEncoding reports whether delimited sources can be decoded from
// the named encoding. An empty name means utf-8.
func IsSupportedEncoding(name string) bool {
	_, err := decoderFor(name)
	return err == nil
}

// decoderFor returns the text encoding for a configured encoding name.
func decoderFor(name string) (encoding.Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = "utf-8"
	}
	enc, ok := encodings[key]
	if !ok {
		return nil, errors.InvalidValue("encoding", fmt.Sprintf("unsupported encoding '%s'", name))
	}
	return enc, nil
}

// ReadCSV parses delimited text. The first record is the header.
func ReadCSV(r io.Reader, name string, comma rune, opts LoadOptions) (*Table, error) {
	enc, err := decoderFor(opts.Encoding)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(enc.NewDecoder().Reader(r))
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.NoColumns(name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", name, err)
	}

	t, err := NewTable(name, header, opts.AllText)
	if err != nil {
		return nil, err
	}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		t.AppendRecord(record)
	}
	return t, nil
}
