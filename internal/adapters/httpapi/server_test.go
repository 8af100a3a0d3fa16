package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/idsreplay/internal/adapters/httpapi"
	"github.com/xoelrdgz/idsreplay/internal/adapters/inference"
	"github.com/xoelrdgz/idsreplay/internal/adapters/input"
	"github.com/xoelrdgz/idsreplay/internal/adapters/output"
	"github.com/xoelrdgz/idsreplay/internal/app"
	"github.com/xoelrdgz/idsreplay/internal/domain"
	"github.com/xoelrdgz/idsreplay/internal/testutil"
)

type env struct {
	svc   *app.Service
	store *input.SampleStore
	ts    *httptest.Server
}

func newEnv(t *testing.T, svcCfg app.ServiceConfig, apiCfg httpapi.Config) *env {
	t.Helper()
	paths := testutil.WriteAll(t, 8)

	var specs []input.DatasetSpec
	for _, c := range domain.AllCategories() {
		specs = append(specs, input.DatasetSpec{Category: c, Path: paths.Datasets[c]})
	}
	store, err := input.LoadSampleStore(context.Background(), specs)
	require.NoError(t, err)

	artCfg := inference.DefaultArtifactsConfig()
	for field, path := range paths.Encoders {
		artCfg.Encoders[field] = inference.ArtifactPath{Path: path}
	}
	artCfg.Model = inference.ArtifactPath{Path: paths.Model}
	artifacts, err := inference.LoadArtifacts(artCfg)
	require.NoError(t, err)

	infer, err := app.NewInferenceService(artifacts.Encoders, artifacts.Classifier)
	require.NoError(t, err)

	svc := app.NewService(svcCfg, store, infer)
	metrics := output.NewPrometheusMetrics("idsreplay", prometheus.NewRegistry(), nil)
	svc.AddFeedObserver(metrics)
	svc.AddPredictionObserver(metrics)
	health := output.NewHealthChecker(svc, output.HealthCheckerConfig{})

	srv := httpapi.NewServer(apiCfg, svc, metrics, health)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		svc.Stop()
	})
	return &env{svc: svc, store: store, ts: ts}
}

func (e *env) post(t *testing.T, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(e.ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func (e *env) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(e.ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	require.NoError(t, dec.Decode(&out))
	return resp, out
}

func toRow(m map[string]any) domain.FeatureRow {
	row := make(domain.FeatureRow, len(m))
	for k, v := range m {
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				row[k] = i
				continue
			}
			f, _ := n.Float64()
			row[k] = f
			continue
		}
		row[k] = v
	}
	return row
}

func TestSetAttackMode(t *testing.T) {
	e := newEnv(t, app.DefaultServiceConfig(), httpapi.DefaultConfig())

	resp, body := e.post(t, "/set_attack_mode", `{"attack_mode": " DoS "}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "attack mode set to dos", body["message"])
	assert.Equal(t, domain.CategoryDoS, e.svc.AttackMode())

	resp, body = e.post(t, "/set_attack_mode", `{"attack_mode": "ddos"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "invalid attack mode")
	assert.Equal(t, domain.CategoryDoS, e.svc.AttackMode())

	resp, _ = e.post(t, "/set_attack_mode", `{}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.CategoryNormal, e.svc.AttackMode())

	for _, bad := range []string{`not json`, `{"attack_mode": 3}`, ``} {
		resp, body = e.post(t, "/set_attack_mode", bad)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, bad)
		assert.NotEmpty(t, body["error"])
	}
}

func TestSetAttackMode_Fallback(t *testing.T) {
	cfg := app.DefaultServiceConfig()
	cfg.UnknownCategory = app.PolicyFallback
	e := newEnv(t, cfg, httpapi.DefaultConfig())

	e.post(t, "/set_attack_mode", `{"attack_mode": "probe"}`)
	resp, body := e.post(t, "/set_attack_mode", `{"attack_mode": "ddos"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "attack mode set to normal", body["message"])
}

func TestAttackMode(t *testing.T) {
	e := newEnv(t, app.DefaultServiceConfig(), httpapi.DefaultConfig())
	e.post(t, "/set_attack_mode", `{"attack_mode": "u2r"}`)

	resp, body := e.get(t, "/attack_mode")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "u2r", body["attack_mode"])
	assert.Len(t, body["available"], 5)
}

func TestStreamData_EmptyBeforeFirstPublish(t *testing.T) {
	e := newEnv(t, app.DefaultServiceConfig(), httpapi.DefaultConfig())

	resp, body := e.get(t, "/stream_data")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body)
}

func TestStreamData_RowShape(t *testing.T) {
	cfg := app.DefaultServiceConfig()
	cfg.StreamMode = app.StreamFresh
	e := newEnv(t, cfg, httpapi.DefaultConfig())

	_, body := e.get(t, "/stream_data")
	assert.Len(t, body, domain.FeatureCount+1)
	for _, name := range domain.FeatureColumns {
		assert.Contains(t, body, name)
	}
	for _, name := range domain.CategoricalColumns {
		assert.IsType(t, "", body[name])
	}
	assert.Equal(t, "normal", body[domain.LabelField])
}

func TestPredict(t *testing.T) {
	e := newEnv(t, app.DefaultServiceConfig(), httpapi.DefaultConfig())

	for _, c := range domain.AllCategories() {
		row := testutil.CategoryRows(c, 1)[0]
		row[domain.AttackCategoryField] = "whatever"
		payload, err := json.Marshal(row)
		require.NoError(t, err)

		resp, body := e.post(t, "/predict", string(payload))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, c.String(), body["prediction"])
	}
}

func TestPredict_Failures(t *testing.T) {
	e := newEnv(t, app.DefaultServiceConfig(), httpapi.DefaultConfig())

	unknown := testutil.CategoryRows(domain.CategoryNormal, 1)[0]
	unknown["protocol_type"] = "sctp"
	unknownJSON, err := json.Marshal(unknown)
	require.NoError(t, err)

	missing := testutil.CategoryRows(domain.CategoryNormal, 1)[0]
	delete(missing, "service")
	missingJSON, err := json.Marshal(missing)
	require.NoError(t, err)

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"unknown protocol", string(unknownJSON), "previously unseen label"},
		{"missing field", string(missingJSON), "missing features: service"},
		{"malformed json", `{"duration": `, "malformed JSON"},
		{"array body", `[1,2,3]`, "malformed JSON"},
		{"null body", `null`, "JSON object"},
		{"empty body", ``, "empty"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := e.post(t, "/predict", tc.body)
			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
			assert.Contains(t, body["error"], tc.message)
		})
	}

	// The server is still answering after every failure.
	resp, _ := e.get(t, "/attack_mode")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPredict_RateLimited(t *testing.T) {
	cfg := httpapi.DefaultConfig()
	cfg.PredictRate = 0.001
	cfg.PredictBurst = 1
	e := newEnv(t, app.DefaultServiceConfig(), cfg)

	payload, err := json.Marshal(testutil.CategoryRows(domain.CategoryNormal, 1)[0])
	require.NoError(t, err)

	resp, _ := e.post(t, "/predict", string(payload))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body := e.post(t, "/predict", string(payload))
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate limit exceeded", body["error"])
}

func TestMethodNotAllowed(t *testing.T) {
	e := newEnv(t, app.DefaultServiceConfig(), httpapi.DefaultConfig())

	resp, err := http.Get(e.ts.URL + "/predict")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRequestIDAndCORS(t *testing.T) {
	e := newEnv(t, app.DefaultServiceConfig(), httpapi.DefaultConfig())

	req, err := http.NewRequest(http.MethodGet, e.ts.URL+"/attack_mode", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Len(t, resp.Header.Get("X-Request-ID"), 36)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("X-Request-ID", "abc-123")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))

	req.Header.Set("X-Request-ID", "abc 123;drop")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Len(t, resp.Header.Get("X-Request-ID"), 36)
}

func TestHealthAndMetrics(t *testing.T) {
	cfg := app.DefaultServiceConfig()
	cfg.Interval = app.MinPublishInterval
	e := newEnv(t, cfg, httpapi.DefaultConfig())

	resp, body := e.get(t, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "stopped", body["status"])

	require.NoError(t, e.svc.Start(context.Background()))
	require.Eventually(t, func() bool {
		resp, _ := e.get(t, "/health")
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	e.post(t, "/set_attack_mode", `{"attack_mode": "probe"}`)

	mresp, err := http.Get(e.ts.URL + "/metrics")
	require.NoError(t, err)
	defer mresp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(mresp.Body)
	require.NoError(t, err)

	text := buf.String()
	assert.Contains(t, text, `idsreplay_attack_mode{category="probe"} 1`)
	assert.Contains(t, text, `idsreplay_attack_mode_changes_total{category="probe"} 1`)
	assert.Contains(t, text, "idsreplay_feed_publishes_total")
	assert.Contains(t, text, `idsreplay_http_requests_total{code="503",route="/health"}`)
}

// End to end: select dos, poll across many publish intervals, every row
// comes from the dos file, and predicting one of them yields a known class.
func TestEndToEnd_DoSReplay(t *testing.T) {
	cfg := app.DefaultServiceConfig()
	cfg.Interval = 20 * time.Millisecond
	e := newEnv(t, cfg, httpapi.DefaultConfig())
	require.NoError(t, e.svc.Start(context.Background()))

	resp, _ := e.post(t, "/set_attack_mode", `{"attack_mode": "dos"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Let the feed move past any row published before the switch.
	time.Sleep(3 * cfg.Interval)

	var last map[string]any
	for i := 0; i < 20; i++ {
		_, body := e.get(t, "/stream_data")
		row := toRow(body)
		assert.True(t, e.store.Contains(domain.CategoryDoS, row), "poll %d returned a non-dos row", i)
		last = body
		time.Sleep(cfg.Interval)
	}

	delete(last, domain.LabelField)
	payload, err := json.Marshal(last)
	require.NoError(t, err)
	_, body := e.post(t, "/predict", string(payload))
	assert.Contains(t, testutil.ModelClasses, body["prediction"])
}

func TestServeListener_GracefulShutdown(t *testing.T) {
	svc := &stubService{}
	srv := httpapi.NewServer(httpapi.DefaultConfig(), svc, nil, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeListener(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/attack_mode")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}

type stubService struct{}

func (stubService) SetAttackMode(name string) (domain.Category, error) {
	return domain.ParseCategory(name)
}
func (stubService) AttackMode() domain.Category { return domain.CategoryNormal }
func (stubService) StreamRow() (domain.FeatureRow, error) {
	return domain.FeatureRow{}, nil
}
func (stubService) Predict(context.Context, domain.FeatureRow) (domain.Prediction, error) {
	return domain.Prediction{Label: "normal"}, nil
}
