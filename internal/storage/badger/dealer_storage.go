package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/heygregwood/woodhouse-creative-sub001/internal/interfaces"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/models"
)

// DealerStorage implements the DealerStorage interface for Badger
type DealerStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDealerStorage creates a new DealerStorage instance
func NewDealerStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DealerStorage {
	return &DealerStorage{
		db:     db,
		logger: logger,
	}
}

func (s *DealerStorage) SaveDealer(ctx context.Context, dealer *models.Dealer) error {
	if dealer.DealerNo == "" {
		return fmt.Errorf("dealer number is required")
	}
	dealer.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(dealer.DealerNo, dealer); err != nil {
		return fmt.Errorf("failed to save dealer: %w", err)
	}
	return nil
}

func (s *DealerStorage) GetDealer(ctx context.Context, dealerNo string) (*models.Dealer, error) {
	var dealer models.Dealer
	if err := s.db.Store().Get(dealerNo, &dealer); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("dealer not found: %s", dealerNo)
		}
		return nil, fmt.Errorf("failed to get dealer: %w", err)
	}
	return &dealer, nil
}

func (s *DealerStorage) GetDealersByProgramStatus(ctx context.Context, programStatus string) ([]*models.Dealer, error) {
	var dealers []models.Dealer
	query := badgerhold.Where("ProgramStatus").Eq(programStatus).Index("ProgramStatus").SortBy("DisplayName")
	if err := s.db.Store().Find(&dealers, query); err != nil {
		return nil, fmt.Errorf("failed to get dealers by program status: %w", err)
	}

	result := make([]*models.Dealer, len(dealers))
	for i := range dealers {
		result[i] = &dealers[i]
	}
	return result, nil
}
