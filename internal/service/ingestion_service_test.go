package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/FallyxInc/cortex-behaviours/internal/domain"
	"github.com/FallyxInc/cortex-behaviours/internal/events"
	"github.com/FallyxInc/cortex-behaviours/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// callLog collects the order in which collaborators are invoked.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

type fakeMetricsService struct {
	log   *callLog
	saved bool
	err   error
	homes []string
}

func (f *fakeMetricsService) Merge(ctx context.Context, home string, update domain.MetricsUpdate) (bool, error) {
	f.log.add("merge")
	f.homes = append(f.homes, home)
	if f.err != nil {
		return false, f.err
	}
	return update.HasAny(), nil
}

type fakeMaterializer struct {
	log    *callLog
	root   string
	err    error
	pdfs   int
	excels int
}

func (f *fakeMaterializer) Materialize(ctx context.Context, home string, pdfs, excels []FilePart) (string, error) {
	f.log.add("materialize")
	f.pdfs, f.excels = len(pdfs), len(excels)
	if f.err != nil {
		return "", f.err
	}
	return filepath.Join(f.root, home), nil
}

type fakePipeline struct {
	log    *callLog
	dir    string
	err    error
	ctxErr error
}

func (f *fakePipeline) Run(ctx context.Context, dir string) (*pipeline.Report, error) {
	f.log.add("pipeline")
	f.dir = dir
	f.ctxErr = ctx.Err()
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Report{Dir: dir}, nil
}

type recordingPublisher struct {
	events []events.IngestionEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, ev events.IngestionEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

type ingestionFixture struct {
	log       *callLog
	metrics   *fakeMetricsService
	files     *fakeMaterializer
	pipeline  *fakePipeline
	publisher *recordingPublisher
	svc       IngestionService
}

func newIngestionFixture() *ingestionFixture {
	log := &callLog{}
	f := &ingestionFixture{
		log:       log,
		metrics:   &fakeMetricsService{log: log},
		files:     &fakeMaterializer{log: log, root: "/srv/python"},
		pipeline:  &fakePipeline{log: log},
		publisher: &recordingPublisher{},
	}
	f.svc = NewIngestionService(f.metrics, f.files, f.pipeline, f.publisher, zap.NewNop())
	return f
}

func parts(names ...string) []FilePart {
	out := make([]FilePart, 0, len(names))
	for _, n := range names {
		out = append(out, stringPart(n, n))
	}
	return out
}

func TestProcess_HomeValidation(t *testing.T) {
	for _, home := range []string{"", "   ", ".", "../etc", "a/b", `a\b`, "..", "./oneill"} {
		f := newIngestionFixture()
		_, err := f.svc.Process(context.Background(), IngestionRequest{Home: home})
		require.Error(t, err, home)
		assert.Equal(t, KindValidation, KindOf(err), home)
		assert.Empty(t, f.log.calls, home)
		assert.Empty(t, f.publisher.events, home)
	}

	f := newIngestionFixture()
	_, err := f.svc.Process(context.Background(), IngestionRequest{})
	assert.EqualError(t, err, "Home is required")
}

func TestProcess_NeitherFilesNorMetrics(t *testing.T) {
	f := newIngestionFixture()

	res, err := f.svc.Process(context.Background(), IngestionRequest{
		Home:       "oneill",
		PDFCount:   0,
		ExcelCount: 3,
		Excels:     parts("a.xlsx", "b.xlsx", "c.xlsx"),
		Metrics:    domain.MetricsUpdate{domain.CategoryWorsened: {Change: "4"}},
	})
	require.NoError(t, err)
	assert.Equal(t, MessageNoChanges, res.Message)
	assert.False(t, res.MetricsSaved)
	assert.Nil(t, res.FileCounts)
	assert.NotEmpty(t, res.RunID)
	assert.Empty(t, f.log.calls)
	assert.Empty(t, f.publisher.events)
}

func TestProcess_MetricsOnly(t *testing.T) {
	f := newIngestionFixture()

	res, err := f.svc.Process(context.Background(), IngestionRequest{
		Home:    "ONCB",
		PDFs:    parts("only.pdf"),
		Metrics: domain.MetricsUpdate{domain.CategoryImproved: {Percentage: "10"}},
	})
	require.NoError(t, err)
	assert.Equal(t, MessageMetricsSaved, res.Message)
	assert.True(t, res.MetricsSaved)
	assert.Nil(t, res.FileCounts)
	assert.Equal(t, []string{"merge"}, f.log.calls)
	assert.Equal(t, []string{"ONCB"}, f.metrics.homes)

	require.Len(t, f.publisher.events, 1)
	ev := f.publisher.events[0]
	assert.True(t, ev.Success)
	assert.True(t, ev.MetricsSaved)
	assert.Equal(t, res.RunID, ev.RunID)
}

func TestProcess_FilesAndMetrics(t *testing.T) {
	f := newIngestionFixture()

	res, err := f.svc.Process(context.Background(), IngestionRequest{
		Home:       "banwell",
		PDFCount:   2,
		ExcelCount: 1,
		PDFs:       parts("a.pdf", "b.pdf"),
		Excels:     parts("c.xlsx"),
		Metrics:    domain.MetricsUpdate{domain.CategoryAntipsychotics: {Percentage: "3"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Files processed successfully and metrics saved", res.Message)
	assert.True(t, res.MetricsSaved)
	require.NotNil(t, res.FileCounts)
	assert.Equal(t, FileCounts{PDFs: 2, Excels: 1}, *res.FileCounts)
	assert.Equal(t, []string{"merge", "materialize", "pipeline"}, f.log.calls)
	assert.Equal(t, filepath.Join("/srv/python", "banwell"), f.pipeline.dir)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, 2, f.publisher.events[0].PDFs)
	assert.Equal(t, 1, f.publisher.events[0].Excels)
}

func TestValidateHome_AcceptsPlainCodes(t *testing.T) {
	for _, home := range []string{"oneill", "ONCB", "millCreek", "home.2"} {
		assert.NoError(t, ValidateHome(home), home)
	}
}

func TestProcess_PipelineOutlivesClientDisconnect(t *testing.T) {
	f := newIngestionFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Process(ctx, IngestionRequest{
		Home: "oneill", PDFCount: 1, ExcelCount: 1,
		PDFs: parts("a.pdf"), Excels: parts("b.xlsx"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"merge", "materialize", "pipeline"}, f.log.calls)
	assert.NoError(t, f.pipeline.ctxErr)
}

func TestProcess_FilesOnly(t *testing.T) {
	f := newIngestionFixture()

	res, err := f.svc.Process(context.Background(), IngestionRequest{
		Home:       "berkshire",
		PDFCount:   1,
		ExcelCount: 1,
		PDFs:       parts("a.pdf"),
		Excels:     parts("b.xls"),
	})
	require.NoError(t, err)
	assert.Equal(t, MessageFilesProcessed, res.Message)
	assert.False(t, res.MetricsSaved)
	assert.Equal(t, 1, f.files.pdfs)
	assert.Equal(t, 1, f.files.excels)
}

func TestProcess_PipelineStepFailure(t *testing.T) {
	f := newIngestionFixture()
	f.pipeline.err = &pipeline.StepError{
		Step:   pipeline.StepExtractExcel,
		Output: pipeline.Output{Stdout: "reading sheet", Stderr: "KeyError: 'Resident'", ExitCode: 1},
		Err:    errors.New("exit status 1"),
	}

	res, err := f.svc.Process(context.Background(), IngestionRequest{
		Home: "oneill", PDFCount: 1, ExcelCount: 1,
		PDFs: parts("a.pdf"), Excels: parts("b.xlsx"),
	})
	require.Error(t, err)
	assert.Nil(t, res)

	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, KindPipelineStep, svcErr.Kind)
	assert.Equal(t, pipeline.StepExtractExcel, svcErr.Step)
	assert.Equal(t, "KeyError: 'Resident'", svcErr.Output)

	require.Len(t, f.publisher.events, 1)
	ev := f.publisher.events[0]
	assert.False(t, ev.Success)
	assert.Equal(t, pipeline.StepExtractExcel, ev.FailedStep)
	assert.Equal(t, string(KindPipelineStep), ev.ErrorKind)
}

func TestProcess_MaterializeFailureSkipsPipeline(t *testing.T) {
	f := newIngestionFixture()
	f.files.err = newError(KindIO, errors.New("disk full"), "failed to write")

	_, err := f.svc.Process(context.Background(), IngestionRequest{
		Home: "oneill", PDFCount: 1, ExcelCount: 1,
		PDFs: parts("a.pdf"), Excels: parts("b.xlsx"),
	})
	require.Error(t, err)
	assert.Equal(t, KindIO, KindOf(err))
	assert.Equal(t, []string{"merge", "materialize"}, f.log.calls)
}

func TestProcess_MetricsFailureStopsBeforeFiles(t *testing.T) {
	f := newIngestionFixture()
	f.metrics.err = newError(KindStore, errors.New("timeout"), "failed to save overview metrics")

	_, err := f.svc.Process(context.Background(), IngestionRequest{
		Home: "oneill", PDFCount: 1, ExcelCount: 1,
		PDFs: parts("a.pdf"), Excels: parts("b.xlsx"),
		Metrics: domain.MetricsUpdate{domain.CategoryWorsened: {Percentage: "2"}},
	})
	require.Error(t, err)
	assert.Equal(t, KindStore, KindOf(err))
	assert.Equal(t, []string{"merge"}, f.log.calls)
}

func TestProcess_PublishFailureDoesNotFailRequest(t *testing.T) {
	f := newIngestionFixture()
	f.publisher.err = errors.New("stream unavailable")

	res, err := f.svc.Process(context.Background(), IngestionRequest{
		Home:    "oneill",
		Metrics: domain.MetricsUpdate{domain.CategoryWorsened: {Percentage: "2"}},
	})
	require.NoError(t, err)
	assert.True(t, res.MetricsSaved)
}

// Real materializer and invoker with a step runner that fails the tabular
// extraction: later steps never run and the files stay on disk.
func TestProcess_EndToEndStopsAfterFailedMandatoryStep(t *testing.T) {
	root := t.TempDir()
	runner := &stepRecorder{fail: pipeline.StepExtractExcel}
	inv := pipeline.NewInvoker(pipeline.DefaultSteps("python3", []string{"pandas"}), runner, 0, zap.NewNop())
	svc := NewIngestionService(&fakeMetricsService{log: &callLog{}}, NewMaterializer(root, zap.NewNop()),
		inv, events.Nop{}, zap.NewNop())

	_, err := svc.Process(context.Background(), IngestionRequest{
		Home: "oneill", PDFCount: 1, ExcelCount: 1,
		PDFs: parts("a.pdf"), Excels: parts("b.xlsx"),
	})
	require.Error(t, err)
	assert.Equal(t, KindPipelineStep, KindOf(err))
	assert.Equal(t, []string{pipeline.StepInstallDependencies, pipeline.StepExtractExcel}, runner.ran)
	assert.FileExists(t, filepath.Join(DownloadsDir(root, "oneill"), "a.pdf"))
	assert.Equal(t, []string{filepath.Join(root, "oneill"), filepath.Join(root, "oneill")}, runner.dirs)
}

type stepRecorder struct {
	fail string
	ran  []string
	dirs []string
}

func (r *stepRecorder) Run(ctx context.Context, dir string, step pipeline.Step) (pipeline.Output, error) {
	r.ran = append(r.ran, step.Name)
	r.dirs = append(r.dirs, dir)
	if step.Name == r.fail {
		return pipeline.Output{Stderr: "boom", ExitCode: 1}, errors.New("exit status 1")
	}
	return pipeline.Output{}, nil
}
