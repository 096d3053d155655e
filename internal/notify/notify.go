// Package notify implements the rewards.Notifier contract: a notification row
// is stored for the customer and the would-be SMS is logged. Delivery is
// best-effort; failures are logged and never surfaced to the caller.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/petropoint/rewards/pkg/rewards"
)

// Notification represents the notifications table.
type Notification struct {
	NotificationID string         `gorm:"type:uuid;primaryKey"`
	CustomerID     string         `gorm:"type:uuid;not null;index"`
	Message        string         `gorm:"not null"`
	Category       string         `gorm:"not null"`
	Payload        datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time      `gorm:"not null"`
}

func (Notification) TableName() string { return "notifications" }

func (notification *Notification) BeforeCreate(tx *gorm.DB) error {
	if notification.NotificationID == "" {
		notification.NotificationID = uuid.NewString()
	}
	return nil
}

// Sink persists notifications and logs the outgoing message.
type Sink struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New returns a Sink backed by gorm.DB.
func New(db *gorm.DB, logger *zap.Logger) *Sink {
	return &Sink{db: db, logger: logger}
}

// Migrate creates the notifications table.
func (sink *Sink) Migrate() error {
	return sink.db.AutoMigrate(&Notification{})
}

// Notify stores and logs a message for the customer. Runs after the originating
// transaction has committed; any failure here is swallowed.
func (sink *Sink) Notify(ctx context.Context, customerID rewards.CustomerID, message string, category string) {
	payload, err := json.Marshal(map[string]string{"category": category})
	if err != nil {
		payload = []byte("{}")
	}
	notification := Notification{
		CustomerID: customerID.String(),
		Message:    message,
		Category:   category,
		Payload:    datatypes.JSON(payload),
	}
	if err := sink.db.WithContext(ctx).Create(&notification).Error; err != nil {
		sink.logger.Warn("notification store failed",
			zap.String("customer_id", customerID.String()),
			zap.String("category", category),
			zap.Error(err))
		return
	}
	// SMS gateway integration point; for now the message is logged.
	sink.logger.Info("notification dispatched",
		zap.String("customer_id", customerID.String()),
		zap.String("category", category),
		zap.String("message", message))
}
