package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/FallyxInc/cortex-behaviours/internal/domain"
	"github.com/FallyxInc/cortex-behaviours/internal/store"
)

// HomesRepo reads the home registry from the document store root.
type HomesRepo interface {
	ListHomes(ctx context.Context) ([]string, error)
}

// MetricsRepo reads and writes /<node>/overviewMetrics.
type MetricsRepo interface {
	GetOverviewMetrics(ctx context.Context, node string) (domain.OverviewMetrics, error)
	SetOverviewMetrics(ctx context.Context, node string, metrics domain.OverviewMetrics) error
}

// StoreHomesRepo implements HomesRepo and MetricsRepo on the document store.
type StoreHomesRepo struct {
	docs *store.DocumentStore
}

func NewStoreHomesRepo(docs *store.DocumentStore) *StoreHomesRepo {
	return &StoreHomesRepo{docs: docs}
}

var (
	_ HomesRepo   = (*StoreHomesRepo)(nil)
	_ MetricsRepo = (*StoreHomesRepo)(nil)
)

func (r *StoreHomesRepo) ListHomes(ctx context.Context) ([]string, error) {
	root, err := r.docs.Root(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch homes: %w", err)
	}
	return HomeCodes(root), nil
}

// HomeCodes classifies a root snapshot: a key is a home iff it is an object
// carrying a behaviours field and is not a reserved node. Sorted ascending.
func HomeCodes(root map[string]store.Node) []string {
	homes := make([]string, 0, len(root))
	for key, node := range root {
		if domain.IsReservedNode(key) {
			continue
		}
		if node.IsObject() && node.Has(domain.BehavioursField) {
			homes = append(homes, key)
		}
	}
	sort.Strings(homes)
	return homes
}

// GetOverviewMetrics returns the stored metrics; a missing or null record is empty.
func (r *StoreHomesRepo) GetOverviewMetrics(ctx context.Context, node string) (domain.OverviewMetrics, error) {
	raw, err := r.docs.Child(ctx, node, domain.OverviewMetricsField)
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			return domain.OverviewMetrics{}, nil
		}
		return nil, fmt.Errorf("read %s/%s: %w", node, domain.OverviewMetricsField, err)
	}
	metrics := domain.OverviewMetrics{}
	if err := json.Unmarshal(raw, &metrics); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", node, domain.OverviewMetricsField, err)
	}
	if metrics == nil {
		metrics = domain.OverviewMetrics{}
	}
	return metrics, nil
}

func (r *StoreHomesRepo) SetOverviewMetrics(ctx context.Context, node string, metrics domain.OverviewMetrics) error {
	if err := r.docs.SetChild(ctx, node, domain.OverviewMetricsField, metrics); err != nil {
		return fmt.Errorf("write %s/%s: %w", node, domain.OverviewMetricsField, err)
	}
	return nil
}
