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
Package server implements the matsearch HTTP API.

Endpoints:
==========

	GET  /properties      numeric columns with their {min, max}
	POST /search          {"conditions":[{"property","min","max"}]} -> {columns, data}
	GET  /item/{id}       {"data": row} or 404 {"error":"not found"}
	GET  /stats           {"total": n} ({"total": null} when unreadable)
	GET  /db/options      {"current", "options":[{key,label,path,exists}]}
	POST /db/select       {"db":"main"|"user"} -> {"ok", "current"}
	POST /db/upload       multipart "file" (.xlsx/.xls) -> {"ok","current","db_path"[,"warn"]}
	GET  /export          ?ids=1,2,3[&format=xlsx|csv|parquet] -> attachment

Request Handling:
=================

Every read opens the active dataset through the catalog for the duration of
the request, so a concurrent switch waits until the read is finished. Errors
are returned as {"error": message} with the status derived from the error
category; a request id and duration are logged for every request.
*/
package server

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"matsearch/internal/cache"
	"matsearch/internal/catalog"
	"matsearch/internal/compression"
	"matsearch/internal/errors"
	"matsearch/internal/export"
	"matsearch/internal/logging"
	"matsearch/internal/metrics"
	"matsearch/internal/query"
)

// Package-level logger for the server component.
var log = logging.NewLogger("server")

// Server is the matsearch HTTP API server.
type Server struct {
	addr      string
	catalog   *catalog.Catalog
	maxUpload int64
	metrics   *metrics.Metrics
	props     *cache.Cache[map[string]query.Range]
	server    *http.Server
	now       func() time.Time
}

// NewServer creates an API server for the datasets tracked by cat.
// maxUploadMB bounds the size of uploaded workbooks.
func NewServer(addr string, cat *catalog.Catalog, maxUploadMB int) *Server {
	s := &Server{
		addr:      addr,
		catalog:   cat,
		maxUpload: int64(maxUploadMB) << 20,
		metrics:   metrics.Get(),
		props:     cache.New[map[string]query.Range](cache.DefaultConfig()),
		now:       time.Now,
	}
	cat.OnReplace(s.props.Invalidate)
	s.metrics.SetCacheStats(s.props.Stats)

	mux := http.NewServeMux()
	mux.Handle("GET /properties", s.handle("properties", s.handleProperties))
	mux.Handle("POST /search", s.handle("search", s.handleSearch))
	mux.Handle("GET /item/{id}", s.handle("lookup", s.handleItem))
	mux.Handle("GET /stats", s.handle("stats", s.handleStats))
	mux.Handle("GET /db/options", s.handle("options", s.handleOptions))
	mux.Handle("POST /db/select", s.handle("select", s.handleSelect))
	mux.Handle("POST /db/upload", s.handle("upload", s.handleUpload))
	mux.Handle("GET /export", s.handle("export", s.handleExport))

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the API handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.props.Close()

	errCh := make(chan error, 1)
	go func() {
		log.Info("API server listening", "addr", s.addr)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info("Stopping API server")
	return s.server.Shutdown(shutdownCtx)
}

// handlerFunc is an API handler that reports failures as errors.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) handle(op string, fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := logging.NewRequestContext(r.RemoteAddr, r.Method, r.URL.Path)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		err := fn(rec, r)
		if err != nil {
			status := errors.HTTPStatus(err)
			writeError(rec, status, err)
			rc.LogError(log, status, err, "op", op, "code", errors.GetCode(err))
		} else {
			rc.LogComplete(log, rec.status, "op", op)
		}
		s.metrics.RecordRequest(op, rc.Duration(), err != nil)
	})
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
	Hint   string `json:"hint,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := errorResponse{Error: err.Error()}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		resp = errorResponse{Error: appErr.Message, Detail: appErr.Detail, Hint: appErr.Hint}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("Failed to write response", "error", err)
	}
}

// withDataset runs fn against the active dataset.
func (s *Server) withDataset(r *http.Request, fn func(sess *catalog.Session) error) error {
	sess, err := s.catalog.Acquire(r.Context())
	if err != nil {
		return err
	}
	defer sess.Close()
	return fn(sess)
}

func (s *Server) handleProperties(w http.ResponseWriter, r *http.Request) error {
	return s.withDataset(r, func(sess *catalog.Session) error {
		key, cacheable := fileKey(sess.Path)
		if cacheable {
			if props, ok := s.props.Get(key); ok {
				writeJSON(w, http.StatusOK, props)
				return nil
			}
		}

		props, err := query.Properties(r.Context(), sess.DB)
		if err != nil {
			return err
		}
		if cacheable {
			s.props.Set(key, props, sess.Path)
		}
		writeJSON(w, http.StatusOK, props)
		return nil
	})
}

// fileKey identifies the current contents of a dataset file by path,
// modification time and size, so a file rewritten by any process gets a new
// key.
func fileKey(path string) (string, bool) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%s|%d|%d", path, fi.ModTime().UnixNano(), fi.Size()), true
}

// SetPropertiesCache turns the property range cache on or off. With the
// cache off every request rescans the dataset.
func (s *Server) SetPropertiesCache(enabled bool) {
	s.props.SetEnabled(enabled)
}

type searchRequest struct {
	Conditions []query.Condition `json:"conditions"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) error {
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	return s.withDataset(r, func(sess *catalog.Session) error {
		res, err := query.Search(r.Context(), sess.DB, req.Conditions)
		if err != nil {
			return err
		}
		s.metrics.SearchRows.Add(uint64(len(res.Data)))
		writeJSON(w, http.StatusOK, res)
		return nil
	})
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) error {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return errors.InvalidValue("id", fmt.Sprintf("'%s' is not an integer", r.PathValue("id")))
	}

	return s.withDataset(r, func(sess *catalog.Session) error {
		row, err := query.Lookup(r.Context(), sess.DB, id)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": row})
		return nil
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) error {
	var total *int64
	err := s.withDataset(r, func(sess *catalog.Session) error {
		n, err := query.Count(r.Context(), sess.DB)
		if err != nil {
			return err
		}
		total = &n
		return nil
	})
	if err != nil {
		log.Warn("Row count unavailable", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": total})
	return nil
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, s.catalog.Options())
	return nil
}

type selectRequest struct {
	DB string `json:"db"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) error {
	var req selectRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	current, err := s.catalog.Select(req.DB)
	if err != nil {
		return err
	}
	s.metrics.Switches.Add(1)
	s.metrics.SetActive(string(current))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "current": current})
	return nil
}

type uploadResponse struct {
	OK      bool            `json:"ok"`
	Current catalog.Version `json:"current"`
	DBPath  string          `json:"db_path"`
	Warn    string          `json:"warn,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return errors.InvalidValue("file", fmt.Sprintf("larger than %d MB", s.maxUpload>>20))
		}
		if stderrors.Is(err, http.ErrMissingFile) || stderrors.Is(err, http.ErrNotMultipart) {
			return errors.MissingRequired("file")
		}
		return errors.InvalidValue("file", err.Error())
	}
	defer file.Close()

	res, err := s.catalog.Upload(r.Context(), header.Filename, file)
	if err != nil {
		return err
	}
	s.metrics.Uploads.Add(1)
	s.metrics.SetActive(string(res.Current))
	writeJSON(w, http.StatusOK, uploadResponse{OK: true, Current: res.Current, DBPath: res.Path, Warn: res.Warn})
	return nil
}

// parseIDs parses a comma separated id list. Empty items are ignored.
func parseIDs(raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.MissingRequired("ids")
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, errors.InvalidValue("ids", fmt.Sprintf("'%s' is not an integer", part))
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errors.NewValidationError("no ids")
	}
	return ids, nil
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) error {
	ids, err := parseIDs(r.URL.Query().Get("ids"))
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		return err
	}
	alg, err := compression.ParseAlgorithm(r.URL.Query().Get("compress"))
	if err != nil || !alg.Writable() {
		return errors.InvalidValue("compress", "use one of none, gzip, zstd, xz, lz4, snappy")
	}

	var buf bytes.Buffer
	var rowCount int
	err = s.withDataset(r, func(sess *catalog.Session) error {
		cols, rows, err := query.FetchRows(r.Context(), sess.DB, ids)
		if err != nil {
			return err
		}
		rowCount = len(rows)
		if err := export.Write(&buf, format, cols, rows); err != nil {
			return errors.NewStorageError("export failed").WithCause(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	filename, contentType := export.Filename(format, s.now()), format.ContentType()
	body := &buf
	if alg != compression.AlgorithmNone {
		body, err = compress(alg, &buf)
		if err != nil {
			return errors.NewStorageError("export compression failed").WithCause(err)
		}
		filename += alg.Extension()
		contentType = "application/octet-stream"
	}

	s.metrics.ExportRows.Add(uint64(rowCount))
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(body.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		log.Debug("Failed to send export", "error", err)
	}
	return nil
}

func compress(alg compression.Algorithm, src *bytes.Buffer) (*bytes.Buffer, error) {
	var out bytes.Buffer
	zw, err := compression.NewWriter(alg, &out)
	if err != nil {
		return nil, err
	}
	if _, err := src.WriteTo(zw); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return &out, nil
}

// decodeBody decodes a JSON request body. An empty body leaves v unchanged.
func decodeBody(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return errors.InvalidValue("request body", err.Error())
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.InvalidValue("request body", err.Error())
	}
	return nil
}
