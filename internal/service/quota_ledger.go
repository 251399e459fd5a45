package service

import (
	"context"

	"go.uber.org/zap"

	"picturehub/internal/domain"
	"picturehub/internal/repository"
)

// QuotaLedger applies usage deltas to space counters. Every call runs in
// the caller's transaction and is a single conditional update, so the
// counters are never read and written back from a stale copy.
type QuotaLedger struct {
	log *zap.Logger
}

func NewQuotaLedger(log *zap.Logger) *QuotaLedger {
	return &QuotaLedger{log: log}
}

// Reserve adds bytes and count to the space, refusing with Forbidden when
// either ceiling would be exceeded.
func (l *QuotaLedger) Reserve(ctx context.Context, tx repository.Store, spaceID, bytes, count int64) error {
	return l.Adjust(ctx, tx, spaceID, bytes, count)
}

// Release subtracts bytes and count; counters floor at zero.
func (l *QuotaLedger) Release(ctx context.Context, tx repository.Store, spaceID, bytes, count int64) error {
	return l.Adjust(ctx, tx, spaceID, -bytes, -count)
}

// Adjust applies signed deltas, e.g. the size difference of a re-upload.
func (l *QuotaLedger) Adjust(ctx context.Context, tx repository.Store, spaceID, deltaBytes, deltaCount int64) error {
	if deltaBytes == 0 && deltaCount == 0 {
		return nil
	}
	err := tx.Spaces().ApplyUsageDelta(ctx, spaceID, deltaBytes, deltaCount)
	if err != nil {
		l.log.Debug("usage delta refused",
			zap.Int64("space", spaceID),
			zap.Int64("bytes", deltaBytes),
			zap.Int64("count", deltaCount),
			zap.Error(err))
		return storeError(err, "space")
	}
	return nil
}

// Info summarizes the usage of space.
func (l *QuotaLedger) Info(space *domain.Space) *domain.QuotaInfo {
	info := &domain.QuotaInfo{
		SpaceID:        space.ID,
		TotalSpace:     space.MaxSize,
		UsedSpace:      space.TotalSize,
		AvailableSpace: max(0, space.MaxSize-space.TotalSize),
		TotalCount:     space.MaxCount,
		UsedCount:      space.TotalCount,
	}
	if space.MaxSize > 0 {
		info.UsagePercent = float64(space.TotalSize) / float64(space.MaxSize) * 100
	}
	if space.MaxCount > 0 {
		info.CountUsagePercent = float64(space.TotalCount) / float64(space.MaxCount) * 100
	}
	return info
}
