package membership

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tunehaus/backstage/internal/models"
	"github.com/tunehaus/backstage/internal/platform/directory"
	"github.com/tunehaus/backstage/pkg/logctx"
	"github.com/tunehaus/backstage/pkg/tool"
)

// CreateCollection registers a new collection for the community and retires
// the current active one in the same transaction, so at most one collection
// per community is ever active.
func (s *Service) CreateCollection(ctx context.Context, communityID string, params *CollectionParams) (*models.NFTCollection, error) {
	if _, err := s.dir.CommunityByID(ctx, communityID); err != nil {
		if errors.Is(err, directory.ErrCommunityNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCommunityNotFound, communityID)
		}
		return nil, err
	}

	collection := &models.NFTCollection{
		ID:              tool.GenerateUUIDV7(),
		CommunityID:     communityID,
		PricePerMonth:   params.PricePerMonth,
		Currency:        params.Currency,
		MaxSupply:       params.MaxSupply,
		ContractAddress: params.ContractAddress,
		IsActive:        true,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.NFTCollection{}).
			Where("community_id = ? AND is_active = ?", communityID, true).
			Update("is_active", false)
		if res.Error != nil {
			return fmt.Errorf("failed to retire active collection: %w", res.Error)
		}
		if err := tx.Create(collection).Error; err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("collection created",
		"collection_id", collection.ID, "community_id", communityID, "price", params.PricePerMonth)
	return collection, nil
}

// DeactivateCollection stops new mints against the collection. Existing
// memberships keep their collection reference and keep renewing.
func (s *Service) DeactivateCollection(ctx context.Context, collectionID string) error {
	res := s.db.WithContext(ctx).Model(&models.NFTCollection{}).
		Where("id = ?", collectionID).
		Update("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("failed to deactivate collection: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collectionID)
	}
	return nil
}
