package rewards

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// Points is an integer reward-point quantity.
type Points int64

// Mobile identifies a customer by contact number.
type Mobile struct {
	value string
}

// BillNumber identifies a purchase bill.
type BillNumber struct {
	value string
}

// FuelType names the dispensed fuel class.
type FuelType struct {
	value string
}

// CustomerID identifies a customer record.
type CustomerID struct {
	value string
}

// ProductID identifies a catalog product.
type ProductID struct {
	value string
}

// ActorID identifies the authenticated user recording an operation.
type ActorID struct {
	value string
}

// Fuel classes the points policy treats specially.
const (
	fuelPetrol = "petrol"
	fuelDiesel = "diesel"
)

// RedemptionKind enumerates redemption record kinds.
type RedemptionKind string

const (
	RedemptionFuelDiscount RedemptionKind = "fuel_discount"
	RedemptionProduct      RedemptionKind = "product"
)

// Role tags a customer record. Only RoleCustomer participates in the ledger.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

// NewMobile validates and normalizes a contact number.
func NewMobile(raw string) (Mobile, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Mobile{}, fmt.Errorf("%w: empty value", ErrInvalidMobile)
	}
	for _, character := range trimmed {
		if !unicode.IsDigit(character) {
			return Mobile{}, fmt.Errorf("%w: must contain digits only", ErrInvalidMobile)
		}
	}
	return Mobile{value: trimmed}, nil
}

// String returns the normalized number.
func (mobile Mobile) String() string {
	return mobile.value
}

// NewBillNumber validates and normalizes a bill number.
func NewBillNumber(raw string) (BillNumber, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return BillNumber{}, fmt.Errorf("%w: empty value", ErrInvalidBillNumber)
	}
	return BillNumber{value: trimmed}, nil
}

// String returns the normalized bill number.
func (billNumber BillNumber) String() string {
	return billNumber.value
}

// NewFuelType validates and normalizes a fuel type label.
func NewFuelType(raw string) (FuelType, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return FuelType{}, fmt.Errorf("%w: empty value", ErrInvalidFuelType)
	}
	return FuelType{value: normalized}, nil
}

// String returns the normalized label.
func (fuelType FuelType) String() string {
	return fuelType.value
}

// IsPetrol reports whether the fuel qualifies for the density bonus class.
func (fuelType FuelType) IsPetrol() bool {
	return fuelType.value == fuelPetrol
}

// IsDiesel reports whether the fuel qualifies for the high-slab bonus class.
func (fuelType FuelType) IsDiesel() bool {
	return fuelType.value == fuelDiesel
}

// NewCustomerID validates and normalizes a customer id.
func NewCustomerID(raw string) (CustomerID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return CustomerID{}, fmt.Errorf("%w: empty value", ErrInvalidCustomerID)
	}
	return CustomerID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id CustomerID) String() string {
	return id.value
}

// NewProductID validates and normalizes a product id.
func NewProductID(raw string) (ProductID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ProductID{}, fmt.Errorf("%w: empty value", ErrInvalidProductID)
	}
	return ProductID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id ProductID) String() string {
	return id.value
}

// NewActorID validates and normalizes an actor id.
func NewActorID(raw string) (ActorID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ActorID{}, fmt.Errorf("%w: empty value", ErrInvalidActorID)
	}
	return ActorID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id ActorID) String() string {
	return id.value
}

// Customer is a ledger participant resolved by mobile.
type Customer struct {
	CustomerID CustomerID
	Mobile     Mobile
	Name       string
	Role       Role
}

// Wallet is the point balance record owned by a customer.
type Wallet struct {
	CustomerID      CustomerID
	TotalPoints     Points
	RedeemedPoints  Points
	AvailablePoints Points
}

// Bill is an immutable record of a single fuel purchase.
type Bill struct {
	BillNumber     BillNumber
	CustomerID     CustomerID
	Mobile         Mobile
	FuelType       FuelType
	Quantity       float64
	Amount         float64
	FuelDensity    *float64
	PointsEarned   Points
	CreatedBy      ActorID
	CreatedUnixUTC int64
}

// Redemption is an immutable record of points spent.
type Redemption struct {
	RedemptionID   string
	CustomerID     CustomerID
	Kind           RedemptionKind
	PointsUsed     Points
	DiscountAmount float64
	ProductID      *ProductID
	ProductName    string
	BillNumber     *BillNumber
	CreatedBy      ActorID
	CreatedUnixUTC int64
}

// Product is a catalog item redeemable for points.
type Product struct {
	ProductID      ProductID
	Name           string
	Description    string
	Category       string
	PointsRequired Points
	StockQuantity  int64
	ImageURL       string
	Active         bool
}

// ProductUpdate carries optional catalog field changes.
type ProductUpdate struct {
	Name           *string
	Description    *string
	Category       *string
	PointsRequired *Points
	StockQuantity  *int64
	ImageURL       *string
	Active         *bool
}

// BillPage is one page of bill history.
type BillPage struct {
	Bills []Bill
	Total int64
}

// Store is the persistence contract used by Service. Mutating calls made inside
// WithTx share that transaction; a returned error rolls the whole unit back.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	GetOrCreateCustomer(ctx context.Context, mobile Mobile) (Customer, error)
	CustomerByMobile(ctx context.Context, mobile Mobile) (Customer, error)
	Wallet(ctx context.Context, customerID CustomerID) (Wallet, error)
	CreditWallet(ctx context.Context, customerID CustomerID, points Points) error
	DebitWallet(ctx context.Context, customerID CustomerID, points Points) error
	InsertBill(ctx context.Context, bill Bill) error
	InsertRedemption(ctx context.Context, redemption Redemption) error
	ProductForRedemption(ctx context.Context, productID ProductID) (Product, error)
	DecrementProductStock(ctx context.Context, productID ProductID) error
	ListBills(ctx context.Context, mobile Mobile, page int, limit int) (BillPage, error)
	ListRedemptions(ctx context.Context, customerID CustomerID) ([]Redemption, error)
	ListProducts(ctx context.Context, category string, activeOnly bool) ([]Product, error)
	CreateProduct(ctx context.Context, product Product) (Product, error)
	UpdateProduct(ctx context.Context, productID ProductID, update ProductUpdate) error
}

// Settings supplies tunable policy parameters by key.
type Settings interface {
	Setting(ctx context.Context, key string) (string, error)
}

// Notifier delivers a best-effort message after a ledger mutation commits.
// Implementations must never fail the calling operation.
type Notifier interface {
	Notify(ctx context.Context, customerID CustomerID, message string, category string)
}
