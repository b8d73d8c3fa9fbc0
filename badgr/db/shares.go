package db

import (
	"context"
	"errors"

	"github.com/badgrhq/badgr-server/badgr"
)

// CreateShare records a badge share.
func (r *Repository) CreateShare(ctx context.Context, share *badgr.BadgeShare) error {
	if r == nil || r.db == nil {
		return errors.New("repository not configured")
	}
	model := BadgeShareModel{
		Provider:        share.Provider,
		BadgeInstanceID: share.BadgeInstanceID,
		Source:          share.Source,
	}
	if model.Source == "" {
		model.Source = "unknown"
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return err
	}
	share.ID = model.ID
	share.CreatedAt = model.CreatedAt
	share.Source = model.Source
	return nil
}

// CountSharesByProvider returns share counts grouped by provider.
func (r *Repository) CountSharesByProvider(ctx context.Context) (map[string]int64, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("repository not configured")
	}
	rows := make([]struct {
		Provider string
		Count    int64
	}, 0)
	err := r.db.WithContext(ctx).Model(&BadgeShareModel{}).
		Select("provider, COUNT(*) as count").
		Group("provider").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.Provider] = row.Count
	}
	return result, nil
}
