// Package settings adapts the system_settings table to the rewards.Settings
// contract, with compiled-in defaults for keys the table does not carry yet.
package settings

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/petropoint/rewards/pkg/rewards"
)

// Defaults applied when a key has no row.
var defaultValues = map[string]string{
	rewards.SettingMinPurchaseAmount:      "100",
	rewards.SettingRedemptionThreshold:    "5",
	rewards.SettingFuelDiscountPercentage: "10",
}

// Setting represents the system_settings table.
type Setting struct {
	SettingKey   string    `gorm:"primaryKey"`
	SettingValue string    `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (Setting) TableName() string { return "system_settings" }

// Provider reads tunable policy parameters from the database.
type Provider struct {
	db *gorm.DB
}

// New returns a Provider backed by gorm.DB.
func New(db *gorm.DB) *Provider {
	return &Provider{db: db}
}

// Migrate creates the settings table.
func (provider *Provider) Migrate() error {
	return provider.db.AutoMigrate(&Setting{})
}

// Setting returns the stored value for key, falling back to the default.
func (provider *Provider) Setting(ctx context.Context, key string) (string, error) {
	var model Setting
	err := provider.db.WithContext(ctx).Where("setting_key = ?", key).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if value, ok := defaultValues[key]; ok {
			return value, nil
		}
		return "", rewards.WrapError("settings", key, "missing", rewards.ErrInvalidSetting)
	}
	if err != nil {
		return "", rewards.WrapError("settings", key, "lookup", err)
	}
	return model.SettingValue, nil
}
