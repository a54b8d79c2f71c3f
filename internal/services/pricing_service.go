package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"creator-subscription-api/internal/database"
	"creator-subscription-api/internal/models"

	"gorm.io/gorm"
)

// PricingService resolves the fee a subscriber pays for a creator and the
// share of it the creator earns
type PricingService struct {
	db          *gorm.DB
	defaultFee  int64
	minFee      int64
	defaultRate float64
	currency    string
}

// NewPricingService creates a pricing service with the platform defaults
func NewPricingService(db *gorm.DB, defaultFee, minFee int64, defaultRate float64, currency string) *PricingService {
	return &PricingService{
		db:          db,
		defaultFee:  defaultFee,
		minFee:      minFee,
		defaultRate: defaultRate,
		currency:    currency,
	}
}

// PriceFor returns the creator's own price, falling back to the global price
func (s *PricingService) PriceFor(ctx context.Context, ownerID string) (*models.CreatorPrice, error) {
	db := s.db.WithContext(ctx)

	price, err := database.GetCreatorPrice(db, ownerID)
	if err == nil {
		return price, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to get creator price: %w", err)
	}

	price, err = database.GetGlobalPrice(db)
	if err == nil {
		return price, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to get global price: %w", err)
	}

	return &models.CreatorPrice{
		IsGlobal: true,
		Amount:   s.defaultFee,
		Currency: s.currency,
	}, nil
}

// SetCreatorPrice sets the fee a creator charges
func (s *PricingService) SetCreatorPrice(ctx context.Context, ownerID string, amount int64) (*models.CreatorPrice, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidRequest)
	}
	if amount < s.minFee {
		return nil, fmt.Errorf("%w: minimum is %d", ErrPriceTooLow, s.minFee)
	}

	db := s.db.WithContext(ctx)
	price := &models.CreatorPrice{
		CreatorID: &ownerID,
		Amount:    amount,
		Currency:  s.currency,
	}
	if err := database.UpsertCreatorPrice(db, price); err != nil {
		return nil, fmt.Errorf("failed to save creator price: %w", err)
	}

	// The upsert may have updated an existing row with a different id
	saved, err := database.GetCreatorPrice(db, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload creator price: %w", err)
	}
	return saved, nil
}

// SetGlobalPrice sets the platform default fee
func (s *PricingService) SetGlobalPrice(ctx context.Context, amount int64, currency string) (*models.CreatorPrice, error) {
	if amount < s.minFee {
		return nil, fmt.Errorf("%w: minimum is %d", ErrPriceTooLow, s.minFee)
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = s.currency
	}
	if len(currency) != 3 {
		return nil, fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidRequest)
	}

	price, err := database.SaveGlobalPrice(s.db.WithContext(ctx), amount, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to save global price: %w", err)
	}
	return price, nil
}

// SetCreatorRate overrides the revenue share for one creator. A nil rate
// restores the platform default.
func (s *PricingService) SetCreatorRate(ctx context.Context, ownerID string, rate *float64) (*models.CreatorPrice, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidRequest)
	}
	if rate != nil && (*rate <= 0 || *rate > 1) {
		return nil, ErrInvalidRate
	}

	defaults, err := s.PriceFor(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	price, err := database.SetCreatorRevenueRate(s.db.WithContext(ctx), ownerID, rate, *defaults)
	if err != nil {
		return nil, fmt.Errorf("failed to save revenue rate: %w", err)
	}
	return price, nil
}

// RevenueRate implements RateResolver
func (s *PricingService) RevenueRate(db *gorm.DB, ownerID string) (float64, error) {
	if db == nil {
		db = s.db
	}
	price, err := database.GetCreatorPrice(db, ownerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.defaultRate, nil
	}
	if err != nil {
		return 0, err
	}
	if price.RevenueRate != nil {
		return *price.RevenueRate, nil
	}
	return s.defaultRate, nil
}
