package usecase

import (
	"context"
	"errors"
	"fmt"

	"codes-api/internal/gateway/domain/model"
	"codes-api/internal/gateway/domain/repository"
	"codes-api/internal/shared/logger"

	"golang.org/x/sync/errgroup"
)

// DiagnosticsUsecaseInterface defines the contract for the diagnostic endpoints.
type DiagnosticsUsecaseInterface interface {
	CollectionStats(ctx context.Context) (*model.CollectionStats, error)
	Health(ctx context.Context) *model.HealthReport
}

// DiagnosticsUsecase reports on the backing store and optional dependencies.
type DiagnosticsUsecase struct {
	store    repository.Store
	checkers []repository.HealthChecker
	logger   logger.Logger
}

// NewDiagnosticsUsecase creates a diagnostics usecase. extra checkers are pinged
// by Health alongside the store.
func NewDiagnosticsUsecase(store repository.Store, log logger.Logger, extra ...repository.HealthChecker) *DiagnosticsUsecase {
	checkers := make([]repository.HealthChecker, 0, len(extra)+1)
	checkers = append(checkers, store)
	for _, c := range extra {
		if c != nil {
			checkers = append(checkers, c)
		}
	}
	return &DiagnosticsUsecase{
		store:    store,
		checkers: checkers,
		logger:   log.WithComponent("diagnostics"),
	}
}

// CollectionStats counts users and codes concurrently. The first failure
// cancels the other count and is returned.
func (uc *DiagnosticsUsecase) CollectionStats(ctx context.Context) (*model.CollectionStats, error) {
	var stats model.CollectionStats

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := uc.store.Users().Count(gctx)
		if err != nil {
			return err
		}
		stats.Users = n
		return nil
	})
	g.Go(func() error {
		n, err := uc.store.Codes().Count(gctx)
		if err != nil {
			return err
		}
		stats.Codes = n
		return nil
	})

	if err := g.Wait(); err != nil {
		var storeErr *repository.StoreError
		if !errors.As(err, &storeErr) {
			err = repository.NewStoreError("", "count", err)
		}
		uc.logger.WithContext(ctx).Errorf("collection count failed: %v", err)
		return nil, err
	}
	return &stats, nil
}

// Health pings every registered dependency.
func (uc *DiagnosticsUsecase) Health(ctx context.Context) *model.HealthReport {
	report := &model.HealthReport{Checks: make(map[string]string, len(uc.checkers))}

	for _, checker := range uc.checkers {
		if err := checker.Ping(ctx); err != nil {
			report.Checks[checker.Name()] = model.CheckFailed
			if report.Err == nil {
				report.Err = fmt.Errorf("%s: %w", checker.Name(), err)
			}
			continue
		}
		report.Checks[checker.Name()] = model.CheckOK
	}
	return report
}
