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
Package catalog tracks the dataset versions on disk and which one is active.

Dataset Versions:
=================

	┌──────────────────────────────────────────────────────┐
	│                       Catalog                        │
	├──────────────────────────────────────────────────────┤
	│  current: main | user | temp                         │
	│  mu: readers hold RLock for a whole query,           │
	│      switches and rebuilds hold Lock                 │
	└──────────────────────────────────────────────────────┘
	              │               │               │
	              ▼               ▼               ▼
	     data/main.db      data/user.db    uploads/upload-*.db
	     rebuilt at        copied from     staged upload, only
	     every startup     main or from    active when user.db
	                       an upload       could not be replaced

A reader that acquires the catalog sees either the dataset that was active
before a switch or the one after it, never a file that is being rebuilt.

Usage:
======

	cat := catalog.New(cfg.MainDBPath(), cfg.UserDBPath(), cfg.UploadDir)
	if err := cat.RebuildMain(ctx, table); err != nil {
	    return err
	}

	sess, err := cat.Acquire(ctx)
	if err != nil {
	    return err
	}
	defer sess.Close()
	result, err := query.Search(ctx, sess.DB, conds)
*/
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"matsearch/internal/errors"
	"matsearch/internal/logging"
	"matsearch/internal/storage"
	"matsearch/internal/tabular"
)

// Version names a dataset version.
type Version string

const (
	VersionMain Version = "main"
	VersionUser Version = "user"
	VersionTemp Version = "temp"
)

// Option describes a selectable dataset version.
type Option struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

// Listing is the response of Options.
type Listing struct {
	Current Version  `json:"current"`
	Options []Option `json:"options"`
}

// UploadResult reports where an uploaded dataset ended up.
type UploadResult struct {
	Current Version
	Path    string
	Warn    string
}

// Catalog owns the active dataset pointer.
type Catalog struct {
	mu          sync.RWMutex
	mainPath    string
	userPath    string
	uploadDir   string
	current     Version
	currentPath string

	// onReplace hooks run with the write lock held whenever a dataset file
	// is rewritten.
	onReplace []func(path string)

	now    func() time.Time
	logger *logging.Logger
}

// New creates a catalog over the given main and user dataset files with
// main active.
func New(mainPath, userPath, uploadDir string) *Catalog {
	return &Catalog{
		mainPath:    mainPath,
		userPath:    userPath,
		uploadDir:   uploadDir,
		current:     VersionMain,
		currentPath: mainPath,
		now:         time.Now,
		logger:      logging.NewLogger("catalog"),
	}
}

// MainPath returns the path of the main dataset.
func (c *Catalog) MainPath() string { return c.mainPath }

// UserPath returns the path of the user dataset.
func (c *Catalog) UserPath() string { return c.userPath }

// Current returns the active version and its file.
func (c *Catalog) Current() (Version, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, c.currentPath
}

// OnReplace registers fn to be called with the path of every dataset file
// that is rebuilt or replaced. No reader holds the dataset while fn runs.
func (c *Catalog) OnReplace(fn func(path string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReplace = append(c.onReplace, fn)
}

// replaced notifies the replace hooks (must hold the write lock).
func (c *Catalog) replaced(path string) {
	for _, fn := range c.onReplace {
		fn(path)
	}
}

// RebuildMain replaces the main dataset with t.
func (c *Catalog) RebuildMain(ctx context.Context, t *tabular.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := storage.BuildFile(ctx, c.mainPath, t)
	c.replaced(c.mainPath)
	if err != nil {
		return err
	}
	c.logger.Info("Main dataset rebuilt", "source", t.Name, "rows", len(t.Rows), "columns", len(t.Columns))
	return nil
}

// Session is an open handle on the active dataset. The dataset cannot be
// switched until the session is closed.
type Session struct {
	DB      *sql.DB
	Version Version
	Path    string

	release func()
	once    sync.Once
}

// Close closes the handle and releases the catalog.
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		err = s.DB.Close()
		s.release()
	})
	return err
}

// Acquire opens the active dataset for reading.
func (c *Catalog) Acquire(ctx context.Context) (*Session, error) {
	c.mu.RLock()

	path := c.currentPath
	if _, err := os.Stat(path); err != nil {
		c.mu.RUnlock()
		if c.current == VersionMain {
			return nil, errors.MainDatasetMissing(path)
		}
		return nil, errors.NewStorageError("active dataset is missing").WithDetail(path).WithCause(err)
	}

	db, err := storage.Open(ctx, path)
	if err != nil {
		c.mu.RUnlock()
		return nil, errors.NewStorageError("failed to open dataset").WithDetail(path).WithCause(err)
	}
	return &Session{DB: db, Version: c.current, Path: path, release: c.mu.RUnlock}, nil
}

// Select makes main or user active. The user dataset is created from a copy
// of main the first time it is selected.
func (c *Catalog) Select(key string) (Version, error) {
	switch Version(key) {
	case VersionMain:
		c.mu.Lock()
		defer c.mu.Unlock()
		c.current, c.currentPath = VersionMain, c.mainPath
		c.logger.Info("Dataset selected", "dataset", VersionMain)
		return VersionMain, nil

	case VersionUser:
		c.mu.Lock()
		defer c.mu.Unlock()
		if !exists(c.userPath) {
			if !exists(c.mainPath) {
				return c.current, errors.MainDatasetMissing(c.mainPath)
			}
			if err := storage.CopyFile(c.mainPath, c.userPath); err != nil {
				return c.current, errors.IOError("failed to create user dataset", err)
			}
			c.replaced(c.userPath)
			c.logger.Info("User dataset created from main", "path", c.userPath)
		}
		c.current, c.currentPath = VersionUser, c.userPath
		c.logger.Info("Dataset selected", "dataset", VersionUser)
		return VersionUser, nil

	default:
		return "", errors.UnknownDataset(key)
	}
}

// AcceptedUploads lists the upload extensions.
var AcceptedUploads = []string{".xlsx", ".xls"}

// Upload stores an uploaded workbook, builds a dataset from it and makes it
// the user dataset. When user.db cannot be replaced the staged dataset is
// activated as temp and the result carries a warning.
func (c *Catalog) Upload(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !accepted(ext) {
		return nil, errors.UnsupportedFile(filename, strings.Join(AcceptedUploads, "/"))
	}

	if err := os.MkdirAll(c.uploadDir, 0755); err != nil {
		return nil, errors.IOError("failed to create upload directory", err)
	}
	stem := fmt.Sprintf("upload-%s-%s", c.now().Format("20060102-150405"), uuid.NewString()[:8])
	rawPath := filepath.Join(c.uploadDir, stem+ext)
	stagedPath := filepath.Join(c.uploadDir, stem+".db")
	ul := c.logger.With("upload", stem)

	if err := saveFile(rawPath, r); err != nil {
		return nil, errors.IOError("failed to store upload", err)
	}
	ul.Info("Upload stored", "file", filename, "path", rawPath)

	table, err := tabular.Load(rawPath, tabular.LoadOptions{AllText: true})
	if err != nil {
		return nil, err
	}
	if err := storage.BuildFile(ctx, stagedPath, table); err != nil {
		os.Remove(stagedPath)
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err = c.replaceUser(stagedPath)
	c.replaced(c.userPath)
	if err != nil {
		c.current, c.currentPath = VersionTemp, stagedPath
		ul.Warn("User dataset replace failed, using staged upload", "path", stagedPath, "error", err)
		return &UploadResult{
			Current: VersionTemp,
			Path:    stagedPath,
			Warn:    fmt.Sprintf("user db replace failed: %v", err),
		}, nil
	}
	os.Remove(stagedPath)

	c.current, c.currentPath = VersionUser, c.userPath
	ul.Info("User dataset replaced from upload", "rows", len(table.Rows), "columns", len(table.Columns))
	return &UploadResult{Current: VersionUser, Path: c.userPath}, nil
}

func (c *Catalog) replaceUser(staged string) error {
	if err := os.MkdirAll(filepath.Dir(c.userPath), 0755); err != nil {
		return err
	}
	if err := os.Remove(c.userPath); err != nil && !os.IsNotExist(err) {
		c.logger.Debug("Could not remove old user dataset", "error", err)
	}
	return storage.CopyFile(staged, c.userPath)
}

// Options lists the selectable versions and the active one.
func (c *Catalog) Options() Listing {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Listing{
		Current: c.current,
		Options: []Option{
			{Key: string(VersionMain), Label: "主数据库", Path: c.mainPath, Exists: exists(c.mainPath)},
			{Key: string(VersionUser), Label: "用户数据库", Path: c.userPath, Exists: exists(c.userPath)},
		},
	}
}

// Check reports whether the active dataset file is present.
func (c *Catalog) Check() error {
	_, path := c.Current()
	if !exists(path) {
		return fmt.Errorf("active dataset %s is missing", path)
	}
	return nil
}

func accepted(ext string) bool {
	for _, a := range AcceptedUploads {
		if ext == a {
			return true
		}
	}
	return false
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func saveFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
