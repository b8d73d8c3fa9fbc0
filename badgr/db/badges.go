package db

import (
	"context"
	"strconv"

	"github.com/badgrhq/badgr-server/badgr"
	"gorm.io/gorm"
)

// CreateIssuer inserts a new issuer.
func (r *Repository) CreateIssuer(ctx context.Context, issuer *badgr.Issuer) error {
	model := IssuerModel{
		EntityID:    issuer.EntityID,
		OwnerID:     issuer.OwnerID,
		Name:        issuer.Name,
		URL:         issuer.URL,
		Email:       issuer.Email,
		Description: issuer.Description,
		Image:       issuer.Image,
	}
	if model.EntityID == "" {
		model.EntityID = newEntityID()
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return translate(err, "issuer", issuer.Name)
	}
	*issuer = *issuerToInternal(model)
	return nil
}

// GetIssuerByEntityID returns an issuer by its public identifier.
func (r *Repository) GetIssuerByEntityID(ctx context.Context, entityID string) (*badgr.Issuer, error) {
	var model IssuerModel
	if err := r.db.WithContext(ctx).Where("entity_id = ?", entityID).First(&model).Error; err != nil {
		return nil, translate(err, "issuer", entityID)
	}
	return issuerToInternal(model), nil
}

// GetIssuer returns an issuer by primary key.
func (r *Repository) GetIssuer(ctx context.Context, id uint) (*badgr.Issuer, error) {
	var model IssuerModel
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		return nil, translate(err, "issuer", strconv.FormatUint(uint64(id), 10))
	}
	return issuerToInternal(model), nil
}

// CreateBadgeClass inserts a badge class with its alignments.
func (r *Repository) CreateBadgeClass(ctx context.Context, class *badgr.BadgeClass) error {
	model := badgeClassToModel(class)
	if model.EntityID == "" {
		model.EntityID = newEntityID()
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
	if err != nil {
		return translate(err, "badgeclass", class.Name)
	}
	*class = *badgeClassToInternal(*model)
	return nil
}

// GetBadgeClassByEntityID returns a badge class by its public identifier.
func (r *Repository) GetBadgeClassByEntityID(ctx context.Context, entityID string) (*badgr.BadgeClass, error) {
	var model BadgeClassModel
	if err := r.db.WithContext(ctx).Preload("Alignments").Where("entity_id = ?", entityID).First(&model).Error; err != nil {
		return nil, translate(err, "badgeclass", entityID)
	}
	return badgeClassToInternal(model), nil
}

// GetBadgeClass returns a badge class by primary key.
func (r *Repository) GetBadgeClass(ctx context.Context, id uint) (*badgr.BadgeClass, error) {
	var model BadgeClassModel
	if err := r.db.WithContext(ctx).Preload("Alignments").First(&model, id).Error; err != nil {
		return nil, translate(err, "badgeclass", strconv.FormatUint(uint64(id), 10))
	}
	return badgeClassToInternal(model), nil
}

// CreateBadgeInstance inserts an assertion with its evidence.
func (r *Repository) CreateBadgeInstance(ctx context.Context, instance *badgr.BadgeInstance) error {
	model := badgeInstanceToModel(instance)
	if model.EntityID == "" {
		model.EntityID = newEntityID()
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
	if err != nil {
		return translate(err, "assertion", instance.RecipientIdentifier)
	}
	*instance = *badgeInstanceToInternal(*model)
	return nil
}

// CreateBadgeInstances inserts several assertions in one transaction.
func (r *Repository) CreateBadgeInstances(ctx context.Context, instances []*badgr.BadgeInstance) error {
	models := make([]*BadgeInstanceModel, 0, len(instances))
	for _, instance := range instances {
		model := badgeInstanceToModel(instance)
		if model.EntityID == "" {
			model.EntityID = newEntityID()
		}
		models = append(models, model)
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range models {
			if err := tx.Create(model).Error; err != nil {
				return translate(err, "assertion", model.RecipientIdentifier)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for i, model := range models {
		*instances[i] = *badgeInstanceToInternal(*model)
	}
	return nil
}

// UpdateBadgeInstance persists revocation state and replaces evidence.
func (r *Repository) UpdateBadgeInstance(ctx context.Context, instance *badgr.BadgeInstance) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := badgeInstanceToModel(instance)
		evidence := model.Evidence
		model.Evidence = nil
		if err := tx.Omit("Evidence").Save(model).Error; err != nil {
			return err
		}
		if err := tx.Where("badge_instance_id = ?", model.ID).Delete(&BadgeInstanceEvidenceModel{}).Error; err != nil {
			return err
		}
		for i := range evidence {
			evidence[i].BadgeInstanceID = model.ID
		}
		if len(evidence) > 0 {
			if err := tx.Create(&evidence).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetBadgeInstanceByEntityID returns an assertion by its public identifier.
func (r *Repository) GetBadgeInstanceByEntityID(ctx context.Context, entityID string) (*badgr.BadgeInstance, error) {
	var model BadgeInstanceModel
	err := r.db.WithContext(ctx).
		Preload("Evidence", orderByPosition).
		Where("entity_id = ?", entityID).
		First(&model).Error
	if err != nil {
		return nil, translate(err, "assertion", entityID)
	}
	return badgeInstanceToInternal(model), nil
}

// ListBadgeInstancesByClass returns the assertions of a badge class, newest first.
func (r *Repository) ListBadgeInstancesByClass(ctx context.Context, badgeClassID uint) ([]*badgr.BadgeInstance, error) {
	var models []BadgeInstanceModel
	err := r.db.WithContext(ctx).
		Preload("Evidence", orderByPosition).
		Where("badge_class_id = ?", badgeClassID).
		Order("issued_on DESC").Order("id DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return instancesToInternal(models), nil
}

// FindBadgeInstancesByRecipient returns assertions whose recipient identifier
// matches identifier case-insensitively.
func (r *Repository) FindBadgeInstancesByRecipient(ctx context.Context, identifier string) ([]*badgr.BadgeInstance, error) {
	var models []BadgeInstanceModel
	err := r.db.WithContext(ctx).
		Preload("Evidence", orderByPosition).
		Where("LOWER(recipient_identifier) = ?", badgr.NormalizeEmail(identifier)).
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return instancesToInternal(models), nil
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func instancesToInternal(models []BadgeInstanceModel) []*badgr.BadgeInstance {
	results := make([]*badgr.BadgeInstance, 0, len(models))
	for _, model := range models {
		results = append(results, badgeInstanceToInternal(model))
	}
	return results
}
