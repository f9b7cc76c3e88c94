package service

import (
	"context"

	"github.com/FallyxInc/cortex-behaviours/internal/domain"
	"github.com/FallyxInc/cortex-behaviours/internal/repository"

	"go.uber.org/zap"
)

// HomeService lists behaviour-enabled homes and the role set derived from them.
type HomeService interface {
	ListHomes(ctx context.Context) ([]string, error)
	// Roles is computed on every call: admin plus the homes that exist right now.
	Roles(ctx context.Context) (domain.RoleSet, error)
}

type homeService struct {
	homes  repository.HomesRepo
	logger *zap.Logger
}

func NewHomeService(homes repository.HomesRepo, logger *zap.Logger) HomeService {
	return &homeService{homes: homes, logger: logger}
}

func (s *homeService) ListHomes(ctx context.Context) ([]string, error) {
	homes, err := s.homes.ListHomes(ctx)
	if err != nil {
		s.logger.Error("ListHomes failed", zap.Error(err))
		return nil, newError(KindStore, err, "failed to fetch homes")
	}
	return homes, nil
}

func (s *homeService) Roles(ctx context.Context) (domain.RoleSet, error) {
	homes, err := s.ListHomes(ctx)
	if err != nil {
		return nil, err
	}
	return domain.NewRoleSet(homes), nil
}
