package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Customer represents the customers table.
type Customer struct {
	CustomerID string    `gorm:"type:uuid;primaryKey"`
	Mobile     string    `gorm:"not null;index:uniq_customers_mobile,unique"`
	Name       string    `gorm:""`
	Role       string    `gorm:"not null;default:customer"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (Customer) TableName() string { return "customers" }

func (customer *Customer) BeforeCreate(tx *gorm.DB) error {
	if customer.CustomerID == "" {
		customer.CustomerID = uuid.NewString()
	}
	return nil
}

// Wallet mirrors the reward_wallets table, one row per customer.
type Wallet struct {
	CustomerID      string    `gorm:"type:uuid;primaryKey"`
	TotalPoints     int64     `gorm:"not null;default:0"`
	RedeemedPoints  int64     `gorm:"not null;default:0"`
	AvailablePoints int64     `gorm:"not null;default:0"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (Wallet) TableName() string { return "reward_wallets" }

// Bill mirrors the bills table.
type Bill struct {
	BillID       string    `gorm:"type:uuid;primaryKey"`
	BillNo       string    `gorm:"not null;index:uniq_bills_bill_no,unique"`
	CustomerID   string    `gorm:"type:uuid;not null;index:idx_bills_customer_created,priority:1"`
	Mobile       string    `gorm:"not null;index"`
	FuelType     string    `gorm:"not null"`
	Quantity     float64   `gorm:"not null"`
	Amount       float64   `gorm:"not null"`
	FuelDensity  *float64  `gorm:""`
	PointsEarned int64     `gorm:"not null"`
	CreatedBy    string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null;index:idx_bills_customer_created,priority:2"`
}

func (Bill) TableName() string { return "bills" }

func (bill *Bill) BeforeCreate(tx *gorm.DB) error {
	if bill.BillID == "" {
		bill.BillID = uuid.NewString()
	}
	return nil
}

// Redemption mirrors the redemptions table.
type Redemption struct {
	RedemptionID   string    `gorm:"type:uuid;primaryKey"`
	CustomerID     string    `gorm:"type:uuid;not null;index:idx_redemptions_customer_created,priority:1"`
	Kind           string    `gorm:"not null"`
	PointsUsed     int64     `gorm:"not null"`
	DiscountAmount float64   `gorm:"not null;default:0"`
	ProductID      *string   `gorm:"type:uuid"`
	BillNo         *string   `gorm:""`
	CreatedBy      string    `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null;index:idx_redemptions_customer_created,priority:2"`
}

func (Redemption) TableName() string { return "redemptions" }

func (redemption *Redemption) BeforeCreate(tx *gorm.DB) error {
	if redemption.RedemptionID == "" {
		redemption.RedemptionID = uuid.NewString()
	}
	return nil
}

// Product mirrors the products table.
type Product struct {
	ProductID      string    `gorm:"type:uuid;primaryKey"`
	Name           string    `gorm:"not null"`
	Description    string    `gorm:""`
	Category       string    `gorm:"index"`
	PointsRequired int64     `gorm:"not null"`
	StockQuantity  int64     `gorm:"not null;default:0"`
	ImageURL       string    `gorm:""`
	IsActive       bool      `gorm:"not null;default:true"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (Product) TableName() string { return "products" }

func (product *Product) BeforeCreate(tx *gorm.DB) error {
	if product.ProductID == "" {
		product.ProductID = uuid.NewString()
	}
	return nil
}
