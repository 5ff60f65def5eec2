package payments

import (
	"time"

	"github.com/ManuelReschke/PayFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the DB operations behind the dedup ledger and the
// side-effect executor.
type Repository interface {
	CreateEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	ReopenFailedEvent(eventID string) error
	FinalizeProcessed(eventID string, fx SideEffects) error
	MarkEventFailed(eventID string, processingError string) error
	GetEvent(eventID string) (*models.WebhookEvent, error)
	CreateIdempotencyKeyIfNotExists(rec *models.IdempotencyKeyRecord) error
	PurgeExpiredIdempotencyKeys(before time.Time) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payments repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("event_id = ?", event.EventID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) ReopenFailedEvent(eventID string) error {
	return r.db.Model(&models.WebhookEvent{}).
		Where("event_id = ? AND status = ?", eventID, models.WebhookStatusFailed).
		Update("status", models.WebhookStatusProcessing).Error
}

// FinalizeProcessed applies all business writes and the processing→processed
// transition in one transaction. A crash can therefore never leave committed
// side effects with an unfinalized ledger row, or vice versa.
func (r *gormRepository) FinalizeProcessed(eventID string, fx SideEffects) error {
	now := time.Now()
	return r.db.Transaction(func(tx *gorm.DB) error {
		for i := range fx.Payments {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "session_id"}},
				DoNothing: true,
			}).Create(&fx.Payments[i]).Error; err != nil {
				return err
			}
		}
		for i := range fx.PaymentIntents {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "pi_id"}},
				DoNothing: true,
			}).Create(&fx.PaymentIntents[i]).Error; err != nil {
				return err
			}
		}

		res := tx.Model(&models.WebhookEvent{}).
			Where("event_id = ? AND status = ?", eventID, models.WebhookStatusProcessing).
			Updates(map[string]interface{}{
				"status":       models.WebhookStatusProcessed,
				"processed_at": &now,
				"last_error":   "",
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrEventNotProcessing
		}
		return nil
	})
}

func (r *gormRepository) MarkEventFailed(eventID string, processingError string) error {
	return r.db.Model(&models.WebhookEvent{}).
		Where("event_id = ? AND status = ?", eventID, models.WebhookStatusProcessing).
		Updates(map[string]interface{}{
			"status":     models.WebhookStatusFailed,
			"last_error": processingError,
		}).Error
}

func (r *gormRepository) GetEvent(eventID string) (*models.WebhookEvent, error) {
	var ev models.WebhookEvent
	if err := r.db.Where("event_id = ?", eventID).First(&ev).Error; err != nil {
		return nil, err
	}
	return &ev, nil
}

func (r *gormRepository) CreateIdempotencyKeyIfNotExists(rec *models.IdempotencyKeyRecord) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(rec).Error
}

func (r *gormRepository) PurgeExpiredIdempotencyKeys(before time.Time) (int64, error) {
	res := r.db.Where("expires_at < ?", before).Delete(&models.IdempotencyKeyRecord{})
	return res.RowsAffected, res.Error
}
