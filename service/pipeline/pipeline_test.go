package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"processor-service/service/dataset"
	"processor-service/service/preprocess"
	"processor-service/service/stats"
	"processor-service/testutil"
)

type mockSink struct {
	mock.Mock
}

func (m *mockSink) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

type recordingObserver struct {
	mu       sync.Mutex
	stages   []string
	finished []JobState
	onStage  func(stage string)
}

func (o *recordingObserver) StageCompleted(stage string, _ time.Duration, _ int) {
	o.mu.Lock()
	o.stages = append(o.stages, stage)
	o.mu.Unlock()
	if o.onStage != nil {
		o.onStage(stage)
	}
}

func (o *recordingObserver) JobFinished(state JobState, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, state)
}

func newJob(id string, opts preprocess.Options) *Job {
	return &Job{ID: id, DatasetID: "ds-" + id, Options: opts, CreatedAt: time.Now()}
}

func oneHotColumns(ds *dataset.Dataset, prefix string) []string {
	var out []string
	for _, name := range ds.Names() {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	return out
}

func TestPipelineDefaultsEndToEnd(t *testing.T) {
	ds := testutil.NewDataset(t, testutil.WithRows(200), testutil.WithMissing(5))
	require.Equal(t, 5, ds.MissingCount())

	sink := &mockSink{}
	sink.On("SaveSnapshot", mock.Anything, mock.Anything).Return(nil)
	observer := &recordingObserver{}
	orch := NewOrchestrator(NewRegistry(), sink, observer)

	result, err := orch.Run(context.Background(), newJob("job-1", preprocess.DefaultOptions()), ds)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Transformed.MissingCount())
	assert.False(t, result.Transformed.Has("color"))
	assert.ElementsMatch(t, []string{"color_blue", "color_green", "color_red"}, oneHotColumns(result.Transformed, "color_"))
	require.NotNil(t, result.Validation)
	assert.NotEmpty(t, result.Validation.Verdict)
	assert.Equal(t, 200, result.Transformed.NumRows())

	assert.Equal(t, preprocess.StageOrder, observer.stages)
	assert.Equal(t, []JobState{StateCompleted}, observer.finished)

	snap, ok := orch.Registry().Get("job-1")
	require.True(t, ok)
	assert.Equal(t, StateCompleted, snap.State)
	assert.NotNil(t, snap.StartedAt)
	assert.NotNil(t, snap.FinishedAt)
	assert.Equal(t, 5, snap.Summary.MissingBefore)
	assert.Equal(t, result.Validation.Verdict, snap.Summary.Verdict)
	assert.Equal(t, len(result.Records), snap.Summary.Transformations)

	sink.AssertNumberOfCalls(t, "SaveSnapshot", 2)
	sink.AssertCalled(t, "SaveSnapshot", mock.Anything, mock.MatchedBy(func(s Snapshot) bool { return s.State == StateRunning }))
	sink.AssertCalled(t, "SaveSnapshot", mock.Anything, mock.MatchedBy(func(s Snapshot) bool { return s.State == StateCompleted }))
}

func TestPipelineWithTargetKeepsOneHotGroup(t *testing.T) {
	ds := testutil.NewDataset(t, testutil.WithRows(180), testutil.WithTarget(), testutil.WithSeed(4))
	opts := preprocess.DefaultOptions()
	opts.TargetColumn = "label"

	result, err := NewOrchestrator(NewRegistry(), nil, nil).Run(context.Background(), newJob("job-t", opts), ds)
	require.NoError(t, err)

	assert.True(t, result.Transformed.Has("label"))
	assert.Len(t, oneHotColumns(result.Transformed, "color_"), 3)
	assert.Equal(t, preprocess.TaskClassification, result.Validation.Task)
	assert.False(t, result.Validation.Skipped)
	assert.NotEmpty(t, preprocess.BuildFeatureImportanceReport(result.Records))

	chosen := result.Chosen()
	if result.Validation.Verdict == preprocess.VerdictOriginal {
		assert.Same(t, result.Original, chosen)
	} else {
		assert.Same(t, result.Transformed, chosen)
	}
	replayed, err := preprocess.Replay(ds, result.ChosenArtifacts())
	require.NoError(t, err)
	assert.Equal(t, chosen.Fingerprint(), replayed.Fingerprint())
}

func TestPipelineRejectsTooFewRows(t *testing.T) {
	ds := testutil.NewDataset(t, testutil.WithRows(40))
	orch := NewOrchestrator(NewRegistry(), nil, nil)

	result, err := orch.Run(context.Background(), newJob("small", preprocess.DefaultOptions()), ds)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, preprocess.ErrInsufficientData)

	snap, ok := orch.Registry().Get("small")
	require.True(t, ok)
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, preprocess.KindInsufficientData, snap.ErrorKind)
	assert.Contains(t, snap.Error, "40")
	assert.Empty(t, snap.Records)
	_, ok = orch.Registry().Result("small")
	assert.False(t, ok)
}

func TestPipelineZScoreClipKeepsRowsWithinBounds(t *testing.T) {
	ds := testutil.NewDataset(t, testutil.WithRows(200), testutil.WithOutliers(1000, 950, -700))
	amount, _ := ds.Column("amount")
	mean, std := stats.MeanStd(amount.Floats())

	opts := preprocess.DefaultOptions()
	opts.Outliers.Method = preprocess.OutlierZScore
	opts.Outliers.Treatment = preprocess.TreatClip
	opts.Outliers.ZThreshold = 3

	result, err := NewOrchestrator(NewRegistry(), nil, nil).Run(context.Background(), newJob("z", opts), ds)
	require.NoError(t, err)

	cleaned, ok := result.Original.Column("amount")
	require.True(t, ok)
	assert.Equal(t, 200, cleaned.Len())
	for _, v := range cleaned.Floats() {
		assert.GreaterOrEqual(t, v, mean-3*std-1e-9)
		assert.LessOrEqual(t, v, mean+3*std+1e-9)
	}
	report := preprocess.BuildOutlierReport(result.Records)
	require.Len(t, report, 1)
	assert.Equal(t, 3, report[0].Count)
}

func TestPipelineRejectsInvalidConfigurationBeforeRunning(t *testing.T) {
	ds := testutil.NewDataset(t)
	orch := NewOrchestrator(NewRegistry(), nil, nil)

	opts := preprocess.DefaultOptions()
	opts.Outliers.ZThreshold = -1
	_, err := orch.Run(context.Background(), newJob("bad", opts), ds)
	assert.ErrorIs(t, err, preprocess.ErrInvalidConfiguration)

	opts = preprocess.DefaultOptions()
	opts.TargetColumn = "missing_column"
	_, err = orch.Run(context.Background(), newJob("bad-target", opts), ds)
	assert.ErrorIs(t, err, preprocess.ErrInvalidConfiguration)

	for _, id := range []string{"bad", "bad-target"} {
		snap, _ := orch.Registry().Get(id)
		assert.Equal(t, StateFailed, snap.State)
		assert.Nil(t, snap.StartedAt, id)
		assert.Empty(t, snap.Records)
		assert.Equal(t, preprocess.KindInvalidConfiguration, snap.ErrorKind)
	}
}

func TestPipelineCancelledAtStageBoundaryKeepsRecords(t *testing.T) {
	ds := testutil.NewDataset(t, testutil.WithMissing(4))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	observer := &recordingObserver{onStage: func(stage string) {
		if stage == preprocess.StageOutliers {
			cancel()
		}
	}}
	orch := NewOrchestrator(NewRegistry(), nil, observer)

	_, err := orch.Run(ctx, newJob("cancel", preprocess.DefaultOptions()), ds)
	assert.ErrorIs(t, err, preprocess.ErrCancelled)

	snap, _ := orch.Registry().Get("cancel")
	assert.Equal(t, StateCancelled, snap.State)
	assert.Equal(t, preprocess.StageOutliers, snap.Stage)
	require.NotEmpty(t, snap.Records)
	for _, rec := range snap.Records {
		assert.Contains(t, []string{preprocess.StageMissingValues, preprocess.StageOutliers}, rec.Stage)
	}
	assert.Equal(t, []JobState{StateCancelled}, observer.finished)
}

func TestPipelineCancelledWhilePending(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	orch := NewOrchestrator(NewRegistry(), nil, nil)

	_, err := orch.Run(ctx, newJob("pending", preprocess.DefaultOptions()), testutil.NewDataset(t))
	assert.ErrorIs(t, err, preprocess.ErrCancelled)
	snap, _ := orch.Registry().Get("pending")
	assert.Equal(t, StateCancelled, snap.State)
	assert.Nil(t, snap.StartedAt)
}

func TestPipelineTimeoutFailsJob(t *testing.T) {
	ds := testutil.NewDataset(t, testutil.WithMissing(4))
	opts := preprocess.DefaultOptions()
	opts.Timeout = 200 * time.Millisecond
	observer := &recordingObserver{onStage: func(stage string) {
		if stage == preprocess.StageOutliers {
			time.Sleep(300 * time.Millisecond)
		}
	}}
	orch := NewOrchestrator(NewRegistry(), nil, observer)

	_, err := orch.Run(context.Background(), newJob("slow", opts), ds)
	assert.ErrorIs(t, err, preprocess.ErrTimeout)

	snap, _ := orch.Registry().Get("slow")
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, preprocess.KindTimeout, snap.ErrorKind)
	assert.Equal(t, "处理超时", snap.Error)
}

func TestRegistryServesConcurrentReadsDuringRun(t *testing.T) {
	registry := NewRegistry()
	orch := NewOrchestrator(registry, nil, nil)
	job := newJob("poll", preprocess.DefaultOptions())
	_, err := registry.Register(job)
	require.NoError(t, err)

	ds := testutil.NewDataset(t, testutil.WithMissing(3))
	done := make(chan error, 1)
	go func() {
		_, err := orch.Run(context.Background(), job, ds)
		done <- err
	}()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, hasResult := registry.Result("poll")
				snap, ok := registry.Get("poll")
				if !ok {
					return
				}
				if hasResult && snap.State != StateCompleted {
					t.Errorf("result visible in state %s", snap.State)
				}
				if snap.State.Terminal() {
					return
				}
			}
		}()
	}
	require.NoError(t, <-done)
	wg.Wait()

	_, ok := registry.Result("poll")
	assert.True(t, ok)
}
