package sandbox

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// LimitedExecutor bounds the number of executions running at once. Requests
// beyond the limit are refused with ErrBusy instead of queueing.
type LimitedExecutor struct {
	logger *zap.Logger
	next   Executor
	limit  int64
	sem    *semaphore.Weighted
}

// NewLimitedExecutor wraps next so that at most limit executions run concurrently.
func NewLimitedExecutor(logger *zap.Logger, next Executor, limit int64) *LimitedExecutor {
	return &LimitedExecutor{
		logger: logger,
		next:   next,
		limit:  limit,
		sem:    semaphore.NewWeighted(limit),
	}
}

// Execute runs the request if a slot is free.
//
//nolint:gocritic // request struct is passed by value like the Executor interface
func (l *LimitedExecutor) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
	if !l.sem.TryAcquire(1) {
		l.logger.Warn("execution refused, concurrency limit reached",
			zap.String("language", req.Language),
			zap.Int64("limit", l.limit))
		return ExecuteResult{}, ErrBusy
	}
	defer l.sem.Release(1)

	return l.next.Execute(ctx, req)
}
