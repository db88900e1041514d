package repository

import (
	"context"

	"FinEdge/internal/domain/models"
	domrepo "FinEdge/internal/domain/repository"

	"github.com/google/uuid"
)

// LocalSignalStore assigns signal ids without persisting anything. It backs
// paper runs where ClickHouse is disabled.
type LocalSignalStore struct{}

var _ domrepo.SignalStore = LocalSignalStore{}

func (LocalSignalStore) SaveSignal(context.Context, models.TradingSignal, models.FeatureSet, models.MarketRegime) (string, error) {
	return uuid.NewString(), nil
}
