package storage

import (
	"context"

	"zeitprognose/models"
)

// HistoryReader is implemented by any backend that can return the
// historical table in row order.
type HistoryReader interface {
	Projects(ctx context.Context) ([]models.HistoricalProject, error)
	Close() error
}

// HistoryWriter persists a parsed historical table, replacing what was there.
type HistoryWriter interface {
	Write(ctx context.Context, projects []models.HistoricalProject) error
	Close() error
}

// EstimateWriter exports estimation results.
type EstimateWriter interface {
	WriteEstimate(label string, systems []models.System, est models.ProjectEstimate) error
	Close() error
}
