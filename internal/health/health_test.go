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


package health

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"

	"matsearch/internal/config"
)

func TestRunChecks(t *testing.T) {
	c := NewChecker("1.0.0")
	c.RegisterCheck("dataset", DatasetCheck(func() error { return nil }))
	c.RegisterCheck("uploads", WritableDirCheck(t.TempDir()))

	resp := c.RunChecks()
	if resp.Status != StatusHealthy {
		t.Errorf("Expected healthy, got %s", resp.Status)
	}
	if len(resp.Checks) != 2 || resp.Checks[0].Name != "dataset" {
		t.Errorf("Expected checks in name order, got %+v", resp.Checks)
	}
	if !c.IsHealthy() {
		t.Error("Expected IsHealthy to be true")
	}
}

func TestStatusAggregation(t *testing.T) {
	c := NewChecker("1.0.0")
	c.RegisterCheck("degraded", func() CheckResult { return CheckResult{Status: StatusDegraded} })
	if got := c.RunChecks().Status; got != StatusDegraded {
		t.Errorf("Expected degraded, got %s", got)
	}

	c.RegisterCheck("dataset", DatasetCheck(func() error { return errors.New("missing") }))
	resp := c.RunChecks()
	if resp.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy, got %s", resp.Status)
	}
}

func TestEndpoints(t *testing.T) {
	ok := true
	c := NewChecker("1.0.0")
	c.RegisterCheck("dataset", DatasetCheck(func() error {
		if ok {
			return nil
		}
		return errors.New("active dataset missing")
	}))
	c.RegisterCheck("uploads", func() CheckResult { return CheckResult{Status: StatusDegraded} })
	s := NewServer(&config.HealthConfig{Enabled: true, Addr: ":0"}, c)

	tests := []struct {
		path   string
		ok     bool
		status int
	}{
		{"/health/live", false, http.StatusOK},
		{"/health/ready", true, http.StatusOK},
		{"/health", true, http.StatusServiceUnavailable},
		{"/health/ready", false, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		ok = tt.ok
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.status {
			t.Errorf("%s (ok=%v): expected %d, got %d", tt.path, tt.ok, tt.status, rec.Code)
		}
		var resp HealthResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Errorf("%s: invalid JSON: %v", tt.path, err)
		}
		if resp.Version != "1.0.0" {
			t.Errorf("%s: expected version 1.0.0, got %s", tt.path, resp.Version)
		}
	}
}

func TestWritableDirCheckFails(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if got := WritableDirCheck(filepath.Join(file, "sub"))(); got.Status != StatusDegraded {
		t.Errorf("Expected degraded, got %s", got.Status)
	}
}
