package db

import (
	"context"
	"strconv"

	"github.com/badgrhq/badgr-server/badgr"
	"gorm.io/gorm"
)

// CreateUser inserts a new user, assigning an entity id when missing.
func (r *Repository) CreateUser(ctx context.Context, user *badgr.User) error {
	model := UserModel{
		EntityID:  user.EntityID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
	if model.EntityID == "" {
		model.EntityID = newEntityID()
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return translate(err, "user", user.Username)
	}
	*user = *userToInternal(model)
	return nil
}

// CreateUserWithEmail inserts a user and their first address in one
// transaction. Neither row is kept when either insert fails.
func (r *Repository) CreateUserWithEmail(ctx context.Context, user *badgr.User, email *badgr.EmailAddress) error {
	userModel := UserModel{
		EntityID:  user.EntityID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
	if userModel.EntityID == "" {
		userModel.EntityID = newEntityID()
	}
	emailModel := EmailAddressModel{
		Email:    email.Email,
		Verified: email.Verified,
		Primary:  email.Primary,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&userModel).Error; err != nil {
			return translate(err, "user", user.Username)
		}
		emailModel.UserID = userModel.ID
		if err := tx.Create(&emailModel).Error; err != nil {
			return translate(err, "email", email.Email)
		}
		return nil
	})
	if err != nil {
		return err
	}
	*user = *userToInternal(userModel)
	*email = *emailToInternal(emailModel)
	return nil
}

// GetUser returns a user by primary key.
func (r *Repository) GetUser(ctx context.Context, id uint) (*badgr.User, error) {
	var model UserModel
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		return nil, translate(err, "user", strconv.FormatUint(uint64(id), 10))
	}
	return userToInternal(model), nil
}

// FindUserByUsername returns a user by username.
func (r *Repository) FindUserByUsername(ctx context.Context, username string) (*badgr.User, error) {
	var model UserModel
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&model).Error; err != nil {
		return nil, translate(err, "user", username)
	}
	return userToInternal(model), nil
}

// ListEmails returns a user's addresses, primary first.
func (r *Repository) ListEmails(ctx context.Context, userID uint) ([]*badgr.EmailAddress, error) {
	var models []EmailAddressModel
	err := r.db.WithContext(ctx).
		Preload("Variants").
		Where("user_id = ?", userID).
		Order("\"primary\" DESC").Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	results := make([]*badgr.EmailAddress, 0, len(models))
	for _, model := range models {
		results = append(results, emailToInternal(model))
	}
	return results, nil
}

// GetEmail returns an address by primary key.
func (r *Repository) GetEmail(ctx context.Context, id uint) (*badgr.EmailAddress, error) {
	var model EmailAddressModel
	if err := r.db.WithContext(ctx).Preload("Variants").First(&model, id).Error; err != nil {
		return nil, translate(err, "email", strconv.FormatUint(uint64(id), 10))
	}
	return emailToInternal(model), nil
}

// FindEmail returns an address matching email case-insensitively.
func (r *Repository) FindEmail(ctx context.Context, email string) (*badgr.EmailAddress, error) {
	var model EmailAddressModel
	err := r.db.WithContext(ctx).
		Preload("Variants").
		Where("LOWER(email) = ?", badgr.NormalizeEmail(email)).
		First(&model).Error
	if err != nil {
		return nil, translate(err, "email", email)
	}
	return emailToInternal(model), nil
}

// CreateEmail inserts a new address.
func (r *Repository) CreateEmail(ctx context.Context, email *badgr.EmailAddress) error {
	model := EmailAddressModel{
		UserID:   email.UserID,
		Email:    email.Email,
		Verified: email.Verified,
		Primary:  email.Primary,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return translate(err, "email", email.Email)
	}
	*email = *emailToInternal(model)
	return nil
}

// UpdateEmail persists verification and primary flags.
func (r *Repository) UpdateEmail(ctx context.Context, email *badgr.EmailAddress) error {
	res := r.db.WithContext(ctx).Model(&EmailAddressModel{}).
		Where("id = ?", email.ID).
		Updates(map[string]any{
			"verified": email.Verified,
			"primary":  email.Primary,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return badgr.NewNotFoundError("email", strconv.FormatUint(uint64(email.ID), 10))
	}
	return nil
}

// DeleteEmail removes an address and its variants.
func (r *Repository) DeleteEmail(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email_address_id = ?", id).Delete(&EmailVariantModel{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&EmailAddressModel{}, id).Error
	})
}

// CountEmails returns the number of addresses a user has.
func (r *Repository) CountEmails(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&EmailAddressModel{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// SetPrimaryEmail makes emailID the only primary address of the user.
func (r *Repository) SetPrimaryEmail(ctx context.Context, userID, emailID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&EmailAddressModel{}).
			Where("user_id = ? AND id <> ?", userID, emailID).
			Update("primary", false).Error; err != nil {
			return err
		}
		res := tx.Model(&EmailAddressModel{}).
			Where("user_id = ? AND id = ?", userID, emailID).
			Update("primary", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return badgr.NewNotFoundError("email", strconv.FormatUint(uint64(emailID), 10))
		}
		return nil
	})
}

// AddEmailVariant records an alternate casing for an address.
func (r *Repository) AddEmailVariant(ctx context.Context, emailID uint, variant string) error {
	model := EmailVariantModel{EmailAddressID: emailID, Email: variant}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return translate(err, "email variant", variant)
	}
	return nil
}
