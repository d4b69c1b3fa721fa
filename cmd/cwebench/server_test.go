package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/vnykmshr/coreworks/internal/testutil"
	"github.com/vnykmshr/coreworks/pkg/engine/pool"
	"github.com/vnykmshr/coreworks/pkg/metrics"
)

func TestRouter(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	reg := prometheus.NewRegistry()

	p := pool.New(pool.Config{
		Name:    "bench",
		Workers: 2,
		Logger:  log,
		Metrics: metrics.NewRegistry(reg),
	})
	defer p.Close()

	var total atomic.Uint64
	w := Workload{Size: 1000, Mode: "split"}
	testutil.AssertNoError(t, p.Submit(w.Command(&total)))
	p.WaitUntilDone()

	srv := httptest.NewServer(newRouter(p, reg))
	defer srv.Close()

	t.Run("healthz", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/healthz")
		testutil.AssertNoError(t, err)
		defer resp.Body.Close()
		testutil.AssertEqual(t, resp.StatusCode, http.StatusOK)

		var body map[string]interface{}
		testutil.AssertNoError(t, json.NewDecoder(resp.Body).Decode(&body))
		testutil.AssertEqual(t, body["status"], interface{}("ok"))
		testutil.AssertEqual(t, body["workers"], interface{}(float64(2)))
		testutil.AssertEqual(t, body["pending"], interface{}(float64(0)))
		testutil.AssertEqual(t, body["submitted"], interface{}(float64(1)))
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/metrics")
		testutil.AssertNoError(t, err)
		defer resp.Body.Close()
		testutil.AssertEqual(t, resp.StatusCode, http.StatusOK)

		buf := new(strings.Builder)
		_, _ = io.Copy(buf, resp.Body)
		if !strings.Contains(buf.String(), `coreworks_pool_commands_submitted_total{pool_name="bench"} 1`) {
			t.Errorf("submitted counter missing from exposition:\n%s", buf.String())
		}
	})
}

func TestServeStopsWithContext(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, "127.0.0.1:0", http.NotFoundHandler(), log)
	}()

	cancel()
	testutil.AssertNoError(t, <-done)
}
