package monitoring

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"processor-service/service/models"
	"processor-service/service/pipeline"
	"processor-service/testutil"
)

func TestPipelineMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)

	m.StageCompleted("missing_values", 20*time.Millisecond, 3)
	m.StageCompleted("missing_values", 10*time.Millisecond, 0)
	m.StageCompleted("outliers", 5*time.Millisecond, 2)
	m.JobFinished(pipeline.StateCompleted, time.Second)
	m.JobFinished(pipeline.StateFailed, time.Second)
	m.JobFinished(pipeline.StateCompleted, time.Second)

	assert.Equal(t, 2.0, promtestutil.ToFloat64(m.jobs.WithLabelValues("completed")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.jobs.WithLabelValues("failed")))
	assert.Equal(t, 3.0, promtestutil.ToFloat64(m.rowsDropped.WithLabelValues("missing_values")))
	assert.Equal(t, 2.0, promtestutil.ToFloat64(m.rowsDropped.WithLabelValues("outliers")))
	assert.Equal(t, 2, promtestutil.CollectAndCount(m.stageDuration))

	done := m.JobStarted()
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.inflight))
	done()
	assert.Equal(t, 0.0, promtestutil.ToFloat64(m.inflight))
}

func TestPipelineMetricsImplementsObserver(t *testing.T) {
	var _ pipeline.Observer = NewPipelineMetrics(prometheus.NewRegistry())
}

func TestCollectJobMetrics(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()
	factory := testutil.NewTestDataFactory(tdb.DB)

	started := time.Now().Add(-2 * time.Second)
	finished := started.Add(time.Second)
	for i := 0; i < 3; i++ {
		factory.CreateProcessingJob(func(j *models.ProcessingJob) {
			j.Status = "completed"
			j.RowsIn, j.RowsOut = 100, 90
			j.StartedAt, j.FinishedAt = &started, &finished
		})
	}
	factory.CreateProcessingJob(func(j *models.ProcessingJob) {
		j.Status = "failed"
		j.ErrorKind = "insufficient_data"
		j.RowsIn = 10
	})
	factory.CreateProcessingJob(func(j *models.ProcessingJob) {
		j.Status = "running"
	})
	factory.CreateProcessingJob(func(j *models.ProcessingJob) {
		j.Status = "completed"
		j.CreatedAt = time.Now().Add(-72 * time.Hour)
	})

	metrics, err := NewMetricsCollector(tdb.DB).CollectJobMetrics(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 5, metrics.TotalJobs)
	assert.EqualValues(t, 3, metrics.StatusCounts["completed"])
	assert.EqualValues(t, 1, metrics.StatusCounts["running"])
	assert.InDelta(t, 75.0, metrics.SuccessRate, 1e-9)
	assert.EqualValues(t, 310, metrics.TotalRowsIn)
	assert.EqualValues(t, 270, metrics.TotalRowsOut)
	assert.EqualValues(t, 1, metrics.ErrorDistribution["insufficient_data"])
	assert.InDelta(t, 1000.0, metrics.AvgDurationMs, 1)
}

func TestHealthChecker(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()
	dir := t.TempDir()

	checker := NewHealthChecker(tdb.DB, time.Second)
	checker.AddDirectory("uploads", dir)
	status := checker.CheckOverallHealth(context.Background())
	assert.Equal(t, HealthHealthy, status.Overall)
	assert.Equal(t, 100, status.Score)
	assert.Contains(t, status.Components, "database")
	assert.Contains(t, status.Components, "runtime")

	checker.AddDependency("redis", PingFunc(func(context.Context) error { return errors.New("connection refused") }))
	status = checker.CheckOverallHealth(context.Background())
	assert.Equal(t, HealthWarning, status.Overall)
	assert.Len(t, status.Issues, 1)

	checker.AddDirectory("processed", filepath.Join(dir, "missing"))
	status = checker.CheckOverallHealth(context.Background())
	assert.Equal(t, HealthCritical, status.Overall)

	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	assert.Equal(t, HealthCritical, checkDirectoryHealth("f", file).Status)
}
