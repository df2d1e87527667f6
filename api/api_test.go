package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/fin-data-pipeline/api/handler"
	"github.com/fyerfyer/fin-data-pipeline/api/middleware"
	"github.com/fyerfyer/fin-data-pipeline/config"
	"github.com/fyerfyer/fin-data-pipeline/internal/errs"
	"github.com/fyerfyer/fin-data-pipeline/internal/loading"
	"github.com/fyerfyer/fin-data-pipeline/internal/pipeline"
	"github.com/fyerfyer/fin-data-pipeline/internal/schema"
	"github.com/fyerfyer/fin-data-pipeline/internal/vectordb"
	"github.com/fyerfyer/fin-data-pipeline/pkg/taskqueue"
)

func init() {
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	middleware.SetLogger(log)
}

type fakeRunner struct {
	got []config.Source
	err error
}

func (f *fakeRunner) Run(ctx context.Context, sources []config.Source) (*pipeline.Report, error) {
	f.got = sources
	if f.err != nil && errors.Is(f.err, errs.ErrConnectionFailure) {
		return nil, f.err
	}
	return &pipeline.Report{
		RunID:     "3f0c8a52-6a1e-4c7b-9a7e-2d1f0e3b4c5d",
		Sources:   len(sources),
		Extracted: len(sources),
		Loads:     map[loading.Status]int{loading.StatusSuccess: len(sources)},
	}, f.err
}

type fakeStores struct {
	connected bool
}

func (f fakeStores) TestConnections(ctx context.Context) loading.ConnectionStatus {
	st := loading.ConnectionStatus{Relational: f.connected, Vector: f.connected, AllConnected: f.connected, Errors: map[string]string{}}
	if !f.connected {
		st.Errors["relational"] = "connection refused"
	}
	return st
}

func (f fakeStores) Statistics(ctx context.Context) loading.Stats {
	return loading.Stats{
		Connections: f.TestConnections(ctx),
		Tables:      map[string]int64{schema.TableDatoMacroeconomico: 4},
		Indexes:     map[string]vectordb.IndexStats{schema.IndexDatoMacroeconomico: {Count: 12, Dimension: 384}},
	}
}

type testServer struct {
	router *gin.Engine
	runner *fakeRunner
	queue  *taskqueue.RedisQueue
}

func testConfig() *config.Config {
	return &config.Config{
		Sources: []config.Source{
			{Name: "BCP", Category: "macroeconomic", URL: "https://www.bcp.gov.py", ContentTypes: []string{"TEXT"}, Route: "macroeconomic"},
			{Name: "DNCP", Category: "contracts", URL: "https://www.contrataciones.gov.py", ContentTypes: []string{"JSON"}, Route: "contracts"},
		},
		TestSources: []config.Source{
			{Name: "Prueba", Category: "news", URL: "https://example.org", ContentTypes: []string{"TEXT"}, Route: "news"},
		},
	}
}

func newTestServer(t *testing.T, connected, withQueue bool) *testServer {
	t.Helper()
	s := &testServer{runner: &fakeRunner{}}

	var queue taskqueue.Queue
	if withQueue {
		mr := miniredis.RunT(t)
		q, err := taskqueue.NewRedisQueue(&taskqueue.Config{RedisAddr: mr.Addr(), RetryLimit: 1}, middleware.GetLogger())
		require.NoError(t, err)
		t.Cleanup(func() { _ = q.Close() })
		s.queue = q
		queue = q
	}

	stores := fakeStores{connected: connected}
	s.router = SetupRouter(Handlers{
		Health:   handler.NewHealthHandler(stores, queue, false),
		Schema:   handler.NewSchemaHandler(),
		Pipeline: handler.NewPipelineHandler(s.runner, testConfig(), queue, nil),
		Task:     handler.NewTaskHandler(queue),
		Stats:    handler.NewStatsHandler(stores),
	})
	return s
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	TraceID string          `json:"trace_id"`
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, true, true)
	w, env := s.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.TraceIDHeader))

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, "ok", data["queue"])

	s = newTestServer(t, false, false)
	w, env = s.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", env.Message)
}

func TestSchemas(t *testing.T) {
	s := newTestServer(t, true, false)

	w, env := s.do(t, http.MethodGet, "/api/schemas", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Tables  []map[string]interface{} `json:"tables"`
		Indexes []map[string]interface{} `json:"indexes"`
		Routes  []schema.Route           `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list.Tables, 7)
	assert.Len(t, list.Indexes, 4)
	assert.Len(t, list.Routes, len(schema.Categories()))

	// 名称不区分大小写
	w, env = s.do(t, http.MethodGet, "/api/schemas/dato_macroeconomico", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		Kind       string            `json:"kind"`
		Definition schema.Definition `json:"definition"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, "table", detail.Kind)
	assert.Equal(t, schema.TableDatoMacroeconomico, detail.Definition.Name)

	w, env = s.do(t, http.MethodGet, "/api/schemas/"+schema.IndexNoticiaRelevante, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, "index", detail.Kind)
	assert.Equal(t, schema.DefaultEmbeddingDimension, detail.Definition.Dimension)

	w, env = s.do(t, http.MethodGet, "/api/schemas/Tabla_Inexistente", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusNotFound, env.Code)
	assert.NotEmpty(t, env.TraceID)
}

func TestRunSync(t *testing.T) {
	s := newTestServer(t, true, false)

	w, env := s.do(t, http.MethodPost, "/api/pipeline/run", map[string]interface{}{"sources": []string{"bcp"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, s.runner.got, 1)
	assert.Equal(t, "BCP", s.runner.got[0].Name)

	var resp struct {
		RunID   string           `json:"run_id"`
		Sources []string         `json:"sources"`
		Report  *pipeline.Report `json:"report"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, []string{"BCP"}, resp.Sources)
	assert.Equal(t, 1, resp.Report.Loads[loading.StatusSuccess])

	// 测试模式使用测试数据源
	w, _ = s.do(t, http.MethodPost, "/api/pipeline/run", map[string]interface{}{"test_mode": true})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, s.runner.got, 1)
	assert.Equal(t, "Prueba", s.runner.got[0].Name)
}

func TestRunErrors(t *testing.T) {
	s := newTestServer(t, true, false)

	w, _ := s.do(t, http.MethodPost, "/api/pipeline/run", map[string]interface{}{"sources": []string{"inexistente"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/pipeline/run", map[string]interface{}{"async": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.runner.err = errs.New(errs.KindConnectionFailure, "relational store unavailable")
	w, env := s.do(t, http.MethodPost, "/api/pipeline/run", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, env.Message, "relational store unavailable")

	// 中断的运行仍返回部分报告
	s.runner.err = context.Canceled
	w, env = s.do(t, http.MethodPost, "/api/pipeline/run", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusPartialContent, env.Code)
}

func TestRunAsyncAndTasks(t *testing.T) {
	s := newTestServer(t, true, true)

	w, env := s.do(t, http.MethodPost, "/api/pipeline/run", map[string]interface{}{"async": true})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Nil(t, s.runner.got)

	var resp struct {
		RunID   string   `json:"run_id"`
		TaskIDs []string `json:"task_ids"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	require.Len(t, resp.TaskIDs, 2)

	require.NoError(t, s.queue.UpdateTaskStatus(context.Background(), resp.TaskIDs[0], taskqueue.StatusCompleted, map[string]int{"extracted": 3}, ""))

	w, env = s.do(t, http.MethodGet, "/api/tasks/"+resp.TaskIDs[0], nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info taskqueue.TaskInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, taskqueue.StatusCompleted, info.Status)
	assert.Equal(t, resp.RunID, info.RunID)
	assert.JSONEq(t, `{"extracted": 3}`, string(info.Result))

	w, env = s.do(t, http.MethodGet, "/api/pipeline/runs/"+resp.RunID+"/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var infos []taskqueue.TaskInfo
	require.NoError(t, json.Unmarshal(env.Data, &infos))
	assert.Len(t, infos, 2)

	w, _ = s.do(t, http.MethodGet, "/api/tasks/8d5e1f0a-0000-4000-8000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/tasks/no-es-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStats(t *testing.T) {
	s := newTestServer(t, true, false)

	w, env := s.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats loading.Stats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(4), stats.Tables[schema.TableDatoMacroeconomico])
	assert.Equal(t, 12, stats.Indexes[schema.IndexDatoMacroeconomico].Count)
}

func TestPanicRecovered(t *testing.T) {
	router := SetupRouter(Handlers{
		Health: handler.NewHealthHandler(nil, nil, false),
	})
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
