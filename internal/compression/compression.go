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
Package compression provides transparent decompression of tabular sources.

Delimited sources may be shipped compressed. The algorithm is chosen from the
file extension, so "materials.csv.zst" is read as a zstd stream holding a CSV
file. Exports can be compressed with any algorithm except bzip2.

Supported Algorithms:
=====================

 1. Gzip   (.gz)  - klauspost/compress/gzip
 2. Zstd   (.zst) - klauspost/compress/zstd
 3. XZ     (.xz)  - ulikunitz/xz
 4. Bzip2  (.bz2) - compress/bzip2, read only
 5. LZ4    (.lz4) - pierrec/lz4/v4
 6. Snappy (.sz)  - golang/snappy framed format
*/
package compression

import (
	"compress/bzip2"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Algorithm represents a compression algorithm.
type Algorithm int

const (
	AlgorithmNone Algorithm = iota
	AlgorithmGzip
	AlgorithmZstd
	AlgorithmXZ
	AlgorithmBzip2
	AlgorithmLZ4
	AlgorithmSnappy
)

var extensions = map[string]Algorithm{
	".gz":  AlgorithmGzip,
	".zst": AlgorithmZstd,
	".xz":  AlgorithmXZ,
	".bz2": AlgorithmBzip2,
	".lz4": AlgorithmLZ4,
	".sz":  AlgorithmSnappy,
}

func (a Algorithm) String() string {
	switch a {
	case AlgorithmNone:
		return "none"
	case AlgorithmGzip:
		return "gzip"
	case AlgorithmZstd:
		return "zstd"
	case AlgorithmXZ:
		return "xz"
	case AlgorithmBzip2:
		return "bzip2"
	case AlgorithmLZ4:
		return "lz4"
	case AlgorithmSnappy:
		return "snappy"
	default:
		return "unknown"
	}
}

// ParseAlgorithm parses a compression algorithm from its name.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return AlgorithmNone, nil
	case "gzip":
		return AlgorithmGzip, nil
	case "zstd":
		return AlgorithmZstd, nil
	case "xz":
		return AlgorithmXZ, nil
	case "bzip2":
		return AlgorithmBzip2, nil
	case "lz4":
		return AlgorithmLZ4, nil
	case "snappy":
		return AlgorithmSnappy, nil
	default:
		return AlgorithmNone, fmt.Errorf("unknown compression algorithm: %s", s)
	}
}

// Extension returns the file extension written for alg, or "" for none.
func (a Algorithm) Extension() string {
	for ext, alg := range extensions {
		if alg == a {
			return ext
		}
	}
	return ""
}

// Writable reports whether NewWriter supports alg.
func (a Algorithm) Writable() bool {
	return a != AlgorithmBzip2 && a.String() != "unknown"
}

// Detect returns the algorithm implied by the last extension of path.
func Detect(path string) Algorithm {
	return extensions[strings.ToLower(filepath.Ext(path))]
}

// Base strips a compression extension from path, if present.
func Base(path string) string {
	if Detect(path) == AlgorithmNone {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// NewReader wraps r with a decompressor for alg. Closing the returned reader
// releases decoder resources but does not close r.
func NewReader(alg Algorithm, r io.Reader) (io.ReadCloser, error) {
	switch alg {
	case AlgorithmNone:
		return io.NopCloser(r), nil
	case AlgorithmGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gz, nil
	case AlgorithmZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return dec.IOReadCloser(), nil
	case AlgorithmXZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return io.NopCloser(xr), nil
	case AlgorithmBzip2:
		return io.NopCloser(bzip2.NewReader(r)), nil
	case AlgorithmLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case AlgorithmSnappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", alg)
	}
}

// NewWriter wraps w with a compressor for alg. The caller must Close the
// returned writer to flush trailing frames.
func NewWriter(alg Algorithm, w io.Writer) (io.WriteCloser, error) {
	switch alg {
	case AlgorithmNone:
		return nopWriteCloser{w}, nil
	case AlgorithmGzip:
		return gzip.NewWriter(w), nil
	case AlgorithmZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		return enc, nil
	case AlgorithmXZ:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz writer: %w", err)
		}
		return xw, nil
	case AlgorithmLZ4:
		return lz4.NewWriter(w), nil
	case AlgorithmSnappy:
		return snappy.NewBufferedWriter(w), nil
	default:
		return nil, fmt.Errorf("compression not supported for writing: %s", alg)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
