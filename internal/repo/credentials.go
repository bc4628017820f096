package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"omnigate/pkg/models"
)

// CredentialRepository handles channel credential data access
type CredentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// GetActive returns the active credential for a channel, preferring a
// user-scoped record over a global one.
func (r *CredentialRepository) GetActive(ctx context.Context, channel models.ChannelType, ownerID *uuid.UUID) (*models.ChannelCredential, error) {
	var cred models.ChannelCredential

	if ownerID != nil {
		err := r.db.WithContext(ctx).
			Where("channel_type = ? AND scope = ? AND owner_id = ? AND is_active = ?",
				channel, models.ScopeUser, ownerID, true).
			First(&cred).Error
		if err == nil {
			return &cred, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	err := r.db.WithContext(ctx).
		Where("channel_type = ? AND scope = ? AND is_active = ?",
			channel, models.ScopeGlobal, true).
		First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// Save atomically replaces the credential for one (scope, channel, owner)
// slot. The previous record is overwritten rather than accumulated so a
// channel never has two active credentials in the same slot.
func (r *CredentialRepository) Save(ctx context.Context, cred *models.ChannelCredential) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.upsert(tx, cred)
	})
}

func (r *CredentialRepository) upsert(tx *gorm.DB, cred *models.ChannelCredential) error {
	query := tx.Where("channel_type = ? AND scope = ?", cred.ChannelType, cred.Scope)
	if cred.Scope == models.ScopeUser {
		query = query.Where("owner_id = ?", cred.OwnerID)
	} else {
		query = query.Where("owner_id IS NULL")
	}

	var existing models.ChannelCredential
	err := query.First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if cred.ID == uuid.Nil {
			cred.ID = uuid.New()
		}
		return tx.Create(cred).Error
	}
	if err != nil {
		return err
	}

	existing.Credential = cred.Credential
	existing.WebhookVerified = cred.WebhookVerified
	existing.IsActive = cred.IsActive
	if err := tx.Save(&existing).Error; err != nil {
		return err
	}
	*cred = existing
	return nil
}

// Deactivate marks a channel's credential inactive without deleting it.
func (r *CredentialRepository) Deactivate(ctx context.Context, channel models.ChannelType, ownerID *uuid.UUID) error {
	query := r.db.WithContext(ctx).Model(&models.ChannelCredential{}).
		Where("channel_type = ?", channel)
	if ownerID != nil {
		query = query.Where("scope = ? AND owner_id = ?", models.ScopeUser, ownerID)
	} else {
		query = query.Where("scope = ?", models.ScopeGlobal)
	}
	return query.Update("is_active", false).Error
}
