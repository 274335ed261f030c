package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"processor-service/service/monitoring"
	"processor-service/service/notify"
	"processor-service/service/preprocess"
	"processor-service/service/processing"
	"processor-service/service/store"
	"processor-service/testutil"
)

type envelope struct {
	Status int             `json:"status"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data"`
}

// ProcessingControllerTestSuite 预处理作业接口测试套件
type ProcessingControllerTestSuite struct {
	suite.Suite
	testDB *testutil.TestDB
	svc    *processing.ProcessingService
	router *chi.Mux
	http   *testutil.HTTPTestHelper
}

func (s *ProcessingControllerTestSuite) SetupTest() {
	dir := s.T().TempDir()
	uploads := filepath.Join(dir, "uploads")
	s.Require().NoError(os.MkdirAll(uploads, 0o755))
	s.writeDataset(uploads, "sales", testutil.DatasetCSV(s.T(), testutil.NewDataset(s.T(), testutil.WithMissing(5))))
	s.writeDataset(uploads, "tiny", testutil.DatasetCSV(s.T(), testutil.NewDataset(s.T(), testutil.WithRows(40))))

	s.testDB = testutil.NewTestDB()
	broker := notify.NewSSEBroker()
	s.svc = processing.NewProcessingService(nil, processing.Dependencies{
		Datasets:      store.NewFileDatasetStore(uploads, filepath.Join(dir, "processed"), 0, 0),
		Jobs:          store.NewGormJobStore(s.testDB.DB),
		Notifier:      broker,
		MaxConcurrent: 2,
	})
	pc := NewProcessingController(s.svc, broker, monitoring.NewMetricsCollector(s.testDB.DB), preprocess.DefaultOptions())
	mc := NewMetaController()

	s.router = chi.NewRouter()
	s.router.Route("/process", func(r chi.Router) {
		r.Post("/", pc.Submit)
		r.Get("/stats", pc.Stats)
		r.Get("/dataset/{dataset_id}", pc.ByDataset)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", pc.Status)
			r.Get("/full", pc.Full)
			r.Get("/transformations", pc.Transformations)
			r.Get("/missing-values", pc.MissingValues)
			r.Get("/outliers", pc.Outliers)
			r.Get("/feature-importance", pc.FeatureImportance)
			r.Get("/artifacts", pc.Artifacts)
			r.Post("/replay", pc.Replay)
			r.Post("/cancel", pc.Cancel)
		})
	})
	s.router.Get("/meta/processing/{category}", mc.GetProcessingMetaCategory)
	s.http = testutil.NewHTTPTestHelper()
}

func (s *ProcessingControllerTestSuite) TearDownTest() {
	s.svc.Wait()
	s.testDB.Close()
}

func (s *ProcessingControllerTestSuite) writeDataset(dir, id string, data []byte) {
	s.Require().NoError(os.WriteFile(filepath.Join(dir, id+".csv"), data, 0o644))
}

func (s *ProcessingControllerTestSuite) do(method, url string, body interface{}) *httptest.ResponseRecorder {
	req, err := s.http.CreateJSONRequest(method, url, body)
	s.Require().NoError(err)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *ProcessingControllerTestSuite) decode(w *httptest.ResponseRecorder, data interface{}) envelope {
	var env envelope
	s.http.DecodeJSON(s.T(), w, &env)
	if data != nil {
		s.Require().NoError(json.Unmarshal(env.Data, data))
	}
	return env
}

func (s *ProcessingControllerTestSuite) submit(datasetID string) string {
	w := s.do(http.MethodPost, "/process", map[string]interface{}{
		"dataset_id":     datasetID,
		"missing_values": map[string]interface{}{"strategy": "auto"},
		"outliers":       map[string]interface{}{"detection_method": "IQR", "treatment_strategy": "clip"},
		"scaling":        map[string]interface{}{"method": "minmax", "feature_range": []float64{0, 1}},
	})
	s.Require().Equal(http.StatusAccepted, w.Code, w.Body.String())
	var resp SubmitResponse
	s.decode(w, &resp)
	s.Equal("processing", resp.Status)
	s.Equal(datasetID, resp.DatasetID)
	s.Require().NotEmpty(resp.JobID)
	return resp.JobID
}

func (s *ProcessingControllerTestSuite) TestCompletedJobEndpoints() {
	id := s.submit("sales")
	s.svc.Wait()

	w := s.do(http.MethodGet, "/process/"+id, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var status StatusResponse
	s.decode(w, &status)
	s.Equal("completed", status.Status)
	s.NotNil(status.ValidationMetrics)

	w = s.do(http.MethodGet, "/process/"+id+"/missing-values", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var missing []preprocess.MissingValueEntry
	s.decode(w, &missing)
	s.Require().Len(missing, 1)
	s.Equal("amount", missing[0].Column)

	for _, path := range []string{"/full", "/outliers", "/feature-importance", "/transformations", "/artifacts"} {
		w = s.do(http.MethodGet, "/process/"+id+path, nil)
		s.Equal(http.StatusOK, w.Code, path)
	}

	w = s.do(http.MethodGet, "/process/"+id+"/artifacts?format=msgpack", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("application/msgpack", w.Header().Get("Content-Type"))
	artifacts, err := preprocess.DecodeArtifacts(w.Body.Bytes())
	s.Require().NoError(err)
	s.NotEmpty(artifacts)

	w = s.do(http.MethodPost, "/process/"+id+"/replay", map[string]string{"dataset_id": "sales"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.True(strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv"))
	s.Greater(bytes.Count(w.Body.Bytes(), []byte("\n")), 100)

	w = s.do(http.MethodGet, "/process/dataset/sales", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(w, &status)
	s.Equal(id, status.JobID)

	w = s.do(http.MethodPost, "/process/"+id+"/cancel", nil)
	s.Equal(http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, "/process/stats?hours=1", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var metrics monitoring.JobMetrics
	s.decode(w, &metrics)
	s.EqualValues(1, metrics.TotalJobs)
	s.EqualValues(1, metrics.StatusCounts["completed"])
}

func (s *ProcessingControllerTestSuite) TestSubmitRejectsBadRequests() {
	cases := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"缺少数据集", map[string]interface{}{}, http.StatusBadRequest},
		{"非法数据集ID", map[string]interface{}{"dataset_id": "../secret"}, http.StatusBadRequest},
		{"数据集不存在", map[string]interface{}{"dataset_id": "nope"}, http.StatusNotFound},
		{"未知策略", map[string]interface{}{
			"dataset_id":     "sales",
			"missing_values": map[string]interface{}{"strategy": "interpolate"},
		}, http.StatusBadRequest},
		{"折数过小", map[string]interface{}{
			"dataset_id": "sales",
			"validation": map[string]interface{}{"folds": 1},
		}, http.StatusBadRequest},
		{"区间长度错误", map[string]interface{}{
			"dataset_id": "sales",
			"scaling":    map[string]interface{}{"method": "minmax", "feature_range": []float64{0}},
		}, http.StatusBadRequest},
		{"类别上限为0", map[string]interface{}{
			"dataset_id": "sales",
			"encoding":   map[string]interface{}{"max_categories": 0},
		}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		w := s.do(http.MethodPost, "/process", tc.body)
		s.Equal(tc.status, w.Code, tc.name)
		env := s.decode(w, nil)
		s.Equal(tc.status, env.Status, tc.name)
		s.NotEmpty(env.Msg, tc.name)
	}
	s.Zero(s.svc.Registry().Len())
}

func (s *ProcessingControllerTestSuite) TestSubmitAcceptsSingleCategoryLimit() {
	// 请求层与选项校验使用同一下限
	w := s.do(http.MethodPost, "/process", map[string]interface{}{
		"dataset_id": "sales",
		"encoding":   map[string]interface{}{"method": "auto", "max_categories": 1},
	})
	s.Require().Equal(http.StatusAccepted, w.Code, w.Body.String())
	s.svc.Wait()
}

func (s *ProcessingControllerTestSuite) TestFailedJobReportsConflict() {
	id := s.submit("tiny")
	s.svc.Wait()

	w := s.do(http.MethodGet, "/process/"+id, nil)
	var status StatusResponse
	s.decode(w, &status)
	s.Equal("failed", status.Status)
	s.Equal(string(preprocess.KindInsufficientData), status.ErrorKind)

	w = s.do(http.MethodGet, "/process/"+id+"/missing-values", nil)
	s.Equal(http.StatusConflict, w.Code)
	w = s.do(http.MethodGet, "/process/"+id+"/artifacts", nil)
	s.Equal(http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, "/process/"+id+"/transformations", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`[]`, string(s.decode(w, nil).Data))

	w = s.do(http.MethodGet, "/process/"+id+"/full", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var report processing.JobReport
	s.decode(w, &report)
	s.Equal(id, report.JobID)
	s.Empty(report.MissingValues)
}

func (s *ProcessingControllerTestSuite) TestUnknownResources() {
	for _, path := range []string{"/process/unknown", "/process/unknown/full", "/process/unknown/outliers", "/process/dataset/sales"} {
		w := s.do(http.MethodGet, path, nil)
		s.Equal(http.StatusNotFound, w.Code, path)
	}
	w := s.do(http.MethodPost, "/process/unknown/cancel", nil)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/process/stats?hours=abc", nil)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/meta/processing/outlier_methods", nil)
	s.Equal(http.StatusOK, w.Code)
	w = s.do(http.MethodGet, "/meta/processing/colors", nil)
	s.Equal(http.StatusNotFound, w.Code)
	w = s.do(http.MethodGet, "/meta/processing/scaling_methods?name=ZScore", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"name":"standard"`)
	w = s.do(http.MethodGet, "/meta/processing/outlier_treatments?name=cap", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func TestProcessingControllerTestSuite(t *testing.T) {
	suite.Run(t, new(ProcessingControllerTestSuite))
}
