package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/criyle/code-runner/cmd/code-runner/config"
	"github.com/criyle/code-runner/envexec"
	"github.com/criyle/code-runner/language"
	"github.com/criyle/code-runner/runner"
	"github.com/criyle/code-runner/worker"
	"go.uber.org/zap/zaptest"
)

func testConfig() *config.Config {
	mem, fsize, out := envexec.Size(1<<30), envexec.Size(64<<20), envexec.Size(4<<20)
	return &config.Config{
		Parallelism:   1,
		MemoryLimit:   &mem,
		FileSizeLimit: &fsize,
		OutputLimit:   &out,
		EnableMetrics: true,
	}
}

func TestInitHTTPMux(t *testing.T) {
	logger = zaptest.NewLogger(t)
	conf := testConfig()
	conf.AllowedOrigins = []string{"https://allowed.example"}
	conf.Dir = t.TempDir()
	work := newWorker(conf, language.Default())
	defer work.Shutdown()
	h := initHTTPMux(conf, work, language.Default())

	for _, path := range []string{"/version", "/healthz", "/languages"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Origin", "https://evil.example")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/run", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("/run status = %d", w.Code)
	}
}

func TestInitMonitorHTTPMux(t *testing.T) {
	conf := testConfig()
	conf.EnableMetrics = false
	if initMonitorHTTPMux(conf) != nil {
		t.Error("monitor mux without metrics or debug")
	}
	conf.EnableMetrics = true
	h := initMonitorHTTPMux(conf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Errorf("/metrics status = %d", w.Code)
	}
}

func TestExecObserve(t *testing.T) {
	// must not panic on either branch
	execObserve(worker.Response{Result: runner.Result{Message: runner.MessageFinished, RunTime: 1, Memory: 1 << 20}})
	execObserve(worker.Response{Error: language.ErrUnsupportedLanguage})
}
