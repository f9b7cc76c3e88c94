package service

import (
	"context"
	"encoding/json"

	"github.com/FallyxInc/cortex-behaviours/internal/domain"
	"github.com/FallyxInc/cortex-behaviours/internal/repository"

	"go.uber.org/zap"
)

// MetricsService merges submitted overview metrics into a home's stored record.
type MetricsService interface {
	// Merge reports whether anything was written. Categories missing from the
	// update keep their stored bytes. Read and write are not atomic: two
	// concurrent merges for one home race and the last write wins.
	Merge(ctx context.Context, home string, update domain.MetricsUpdate) (bool, error)
}

type metricsService struct {
	repo   repository.MetricsRepo
	logger *zap.Logger
}

func NewMetricsService(repo repository.MetricsRepo, logger *zap.Logger) MetricsService {
	return &metricsService{repo: repo, logger: logger}
}

func (s *metricsService) Merge(ctx context.Context, home string, update domain.MetricsUpdate) (bool, error) {
	categories := update.Categories()
	if len(categories) == 0 {
		return false, nil
	}

	node := domain.AltName(home)
	current, err := s.repo.GetOverviewMetrics(ctx, node)
	if err != nil {
		return false, newError(KindStore, err, "failed to read overview metrics")
	}

	merged := make(domain.OverviewMetrics, len(current)+len(categories))
	for k, v := range current {
		merged[k] = v
	}
	for name, c := range categories {
		raw, err := json.Marshal(c)
		if err != nil {
			return false, newError(KindInternal, err, "failed to encode %s", name)
		}
		merged[name] = raw
	}

	if err := s.repo.SetOverviewMetrics(ctx, node, merged); err != nil {
		return false, newError(KindStore, err, "failed to save overview metrics")
	}

	fields := []zap.Field{zap.String("home", home), zap.String("node", node)}
	for name := range categories {
		fields = append(fields, zap.Bool(name, true))
	}
	s.logger.Info("Overview metrics saved", fields...)
	return true, nil
}
