package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/FallyxInc/cortex-behaviours/internal/domain"
	"github.com/FallyxInc/cortex-behaviours/internal/events"
	"github.com/FallyxInc/cortex-behaviours/internal/pipeline"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MessageNoChanges      = "No changes made - existing values preserved"
	MessageMetricsSaved   = "Metrics saved successfully"
	MessageFilesProcessed = "Files processed successfully"

	// diagnosticsLimit bounds the step output returned to the caller.
	diagnosticsLimit = 4096
)

// PipelineRunner runs the external processing steps in a home directory.
type PipelineRunner interface {
	Run(ctx context.Context, dir string) (*pipeline.Report, error)
}

// IngestionRequest is one parsed upload batch.
type IngestionRequest struct {
	Home       string
	PDFCount   int
	ExcelCount int
	PDFs       []FilePart
	Excels     []FilePart
	Metrics    domain.MetricsUpdate
}

// HasFiles both declared counts must be positive; a batch with only one kind
// of file is treated as carrying no files.
func (r *IngestionRequest) HasFiles() bool {
	return r.PDFCount > 0 && r.ExcelCount > 0
}

type FileCounts struct {
	PDFs   int `json:"pdfs"`
	Excels int `json:"excels"`
}

type IngestionResult struct {
	RunID        string
	Message      string
	MetricsSaved bool
	FileCounts   *FileCounts
}

// IngestionService validates a batch, merges metrics, saves files and runs the pipeline.
type IngestionService interface {
	Process(ctx context.Context, req IngestionRequest) (*IngestionResult, error)
}

type ingestionService struct {
	metrics      MetricsService
	materializer Materializer
	pipeline     PipelineRunner
	publisher    events.Publisher
	logger       *zap.Logger
	now          func() time.Time
}

func NewIngestionService(
	metrics MetricsService,
	materializer Materializer,
	runner PipelineRunner,
	publisher events.Publisher,
	logger *zap.Logger,
) IngestionService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &ingestionService{
		metrics:      metrics,
		materializer: materializer,
		pipeline:     runner,
		publisher:    publisher,
		logger:       logger,
		now:          time.Now,
	}
}

// ValidateHome rejects empty codes and codes that would escape the processing root.
func ValidateHome(home string) error {
	if strings.TrimSpace(home) == "" {
		return validationError("Home is required")
	}
	if strings.ContainsAny(home, `/\`) || strings.Contains(home, "..") ||
		home == "." || filepath.Base(home) != home || filepath.Clean(home) != home {
		return validationError("Invalid home %q", home)
	}
	return nil
}

func (s *ingestionService) Process(ctx context.Context, req IngestionRequest) (*IngestionResult, error) {
	if err := ValidateHome(req.Home); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	log := s.logger.With(zap.String("run_id", runID), zap.String("home", req.Home))

	hasFiles := req.HasFiles()
	hasMetrics := req.Metrics.HasAny()
	log.Info("Ingestion request received",
		zap.Int("pdf_count", req.PDFCount),
		zap.Int("excel_count", req.ExcelCount),
		zap.Bool("has_files", hasFiles),
		zap.Bool("has_metrics", hasMetrics),
	)

	if !hasFiles && !hasMetrics {
		return &IngestionResult{RunID: runID, Message: MessageNoChanges}, nil
	}

	result := &IngestionResult{RunID: runID}
	err := s.process(ctx, log, req, hasFiles, result)
	s.publish(ctx, log, req, result, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ingestionService) process(ctx context.Context, log *zap.Logger, req IngestionRequest, hasFiles bool, result *IngestionResult) error {
	saved, err := s.metrics.Merge(ctx, req.Home, req.Metrics)
	if err != nil {
		log.Error("Metrics merge failed", zap.Error(err))
		return err
	}
	result.MetricsSaved = saved

	if !hasFiles {
		result.Message = MessageMetricsSaved
		return nil
	}

	counts := &FileCounts{PDFs: len(req.PDFs), Excels: len(req.Excels)}
	result.FileCounts = counts

	dir, err := s.materializer.Materialize(ctx, req.Home, req.PDFs, req.Excels)
	if err != nil {
		log.Error("Saving uploaded files failed", zap.Error(err))
		return err
	}

	// Steps run to completion or their own timeout even if the client goes away.
	if _, err := s.pipeline.Run(context.WithoutCancel(ctx), dir); err != nil {
		var stepErr *pipeline.StepError
		if errors.As(err, &stepErr) {
			return &Error{
				Kind:    KindPipelineStep,
				Message: "pipeline step " + stepErr.Step + " failed",
				Step:    stepErr.Step,
				Output:  stepErr.Diagnostics(diagnosticsLimit),
				Err:     stepErr.Err,
			}
		}
		return newError(KindPipelineStep, err, "pipeline failed")
	}

	result.Message = MessageFilesProcessed
	if saved {
		result.Message += " and metrics saved"
	}
	log.Info("Ingestion completed",
		zap.Int("pdfs", counts.PDFs),
		zap.Int("excels", counts.Excels),
		zap.Bool("metrics_saved", saved),
	)
	return nil
}

// publish is best-effort; a delivery failure never changes the response.
func (s *ingestionService) publish(ctx context.Context, log *zap.Logger, req IngestionRequest, result *IngestionResult, procErr error) {
	ev := events.IngestionEvent{
		RunID:        result.RunID,
		Home:         req.Home,
		Success:      procErr == nil,
		MetricsSaved: result.MetricsSaved,
		OccurredAt:   s.now().UTC(),
	}
	if result.FileCounts != nil {
		ev.PDFs = result.FileCounts.PDFs
		ev.Excels = result.FileCounts.Excels
	}
	if procErr != nil {
		ev.ErrorKind = string(KindOf(procErr))
		ev.Error = procErr.Error()
		var e *Error
		if errors.As(procErr, &e) {
			ev.FailedStep = e.Step
		}
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		log.Warn("Failed to publish ingestion event", zap.Error(err))
	}
}
