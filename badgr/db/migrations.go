package db

import (
	"fmt"

	"gorm.io/gorm"
)

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&UserModel{}, &EmailAddressModel{}, &EmailVariantModel{}); err != nil {
		return err
	}
	if err := db.AutoMigrate(&IssuerModel{}, &BadgeClassModel{}, &BadgeClassAlignmentModel{}); err != nil {
		return err
	}
	if err := db.AutoMigrate(&BadgeInstanceModel{}, &BadgeInstanceEvidenceModel{}, &BadgeShareModel{}); err != nil {
		return err
	}
	return backfillDefaults(db)
}

// backfillDefaults repairs rows stored with empty values in columns that
// now carry a default. AutoMigrate adds missing columns with their default,
// so only blank values written by older builds need fixing.
func backfillDefaults(db *gorm.DB) error {
	steps := []struct {
		column string
		query  string
	}{
		{"badge_instances.recipient_type", "UPDATE badge_instances SET recipient_type = 'email' WHERE recipient_type = '' OR recipient_type IS NULL"},
		{"badge_classes.image_type", "UPDATE badge_classes SET image_type = 'image/png' WHERE image_type = '' OR image_type IS NULL"},
		{"backpack_badge_shares.source", "UPDATE backpack_badge_shares SET source = 'unknown' WHERE source = '' OR source IS NULL"},
	}
	for _, step := range steps {
		if err := db.Exec(step.query).Error; err != nil {
			return fmt.Errorf("populate %s: %w", step.column, err)
		}
	}
	return nil
}
