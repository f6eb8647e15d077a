package repository

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"yearn-vaults/internal/models"
)

type NotificationRepository interface {
	Create(notification *models.Notification) error
	GetByID(id string) (*models.Notification, error)
	Update(notification *models.Notification) error
	ListByOwner(owner string, limit int) ([]*models.Notification, error)
	CountByStatus(status string) (int64, error)
	DeleteOld(days int) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(notification *models.Notification) error {
	notification.Owner = strings.ToLower(notification.Owner)
	return r.db.Create(notification).Error
}

func (r *notificationRepository) GetByID(id string) (*models.Notification, error) {
	var notification models.Notification
	if err := r.db.Where("id = ?", id).First(&notification).Error; err != nil {
		return nil, notFound(err)
	}
	return &notification, nil
}

func (r *notificationRepository) Update(notification *models.Notification) error {
	return r.db.Save(notification).Error
}

func (r *notificationRepository) ListByOwner(owner string, limit int) ([]*models.Notification, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = DefaultPageSize
	}

	var notifications []*models.Notification
	err := r.db.
		Where("owner = ?", strings.ToLower(owner)).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error

	return notifications, err
}

func (r *notificationRepository) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Notification{}).
		Where("status = ?", status).
		Count(&count).Error

	return count, err
}

// DeleteOld removes settled notifications older than days. Pending ones are
// kept so a wallet can still resolve them.
func (r *notificationRepository) DeleteOld(days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	result := r.db.
		Where("created_at < ?", cutoff).
		Where("status IN ?", []string{models.NotificationStatusSuccess, models.NotificationStatusError}).
		Delete(&models.Notification{})

	return result.RowsAffected, result.Error
}
