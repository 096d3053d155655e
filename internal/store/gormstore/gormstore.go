package gormstore

import (
	"context"
	"errors"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/petropoint/rewards/pkg/rewards"
)

const (
	constraintBillNumber     = "uniq_bills_bill_no"
	constraintCustomerMobile = "uniq_customers_mobile"

	pgUniqueViolationCode = "23505"
	pgLockNotAvailable    = "55P03"
	pgSerializationError  = "40001"
	pgDeadlockDetected    = "40P01"
	sqliteConstraintCode  = 19
	sqliteBusyCode        = 5
	sqliteLockedCode      = 6

	errorOperationStore   = "store"
	errorSubjectCustomer  = "customer"
	errorSubjectWallet    = "wallet"
	errorSubjectBill      = "bill"
	errorSubjectRedeem    = "redemption"
	errorSubjectProduct   = "product"
	errorCodeBusy         = "busy"
	errorCodeCreate       = "create"
	errorCodeCredit       = "credit"
	errorCodeDebit        = "debit"
	errorCodeDecrement    = "decrement_stock"
	errorCodeDuplicate    = "duplicate"
	errorCodeGet          = "get"
	errorCodeInsert       = "insert"
	errorCodeInvalid      = "invalid"
	errorCodeList         = "list"
	errorCodeLookup       = "lookup"
	errorCodeUpdate       = "update"
)

// Store implements rewards.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the backing tables.
func (store *Store) Migrate() error {
	return store.db.AutoMigrate(&Customer{}, &Wallet{}, &Bill{}, &Redemption{}, &Product{})
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore rewards.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

// GetOrCreateCustomer resolves a customer by mobile, creating the customer and
// a zeroed wallet pair on first sighting. A concurrent first sighting of the
// same mobile surfaces as a retryable busy error.
func (store *Store) GetOrCreateCustomer(ctx context.Context, mobile rewards.Mobile) (rewards.Customer, error) {
	var model Customer
	err := store.db.WithContext(ctx).Where("mobile = ?", mobile.String()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		model = Customer{Mobile: mobile.String(), Role: string(rewards.RoleCustomer)}
		if createErr := store.db.WithContext(ctx).Create(&model).Error; createErr != nil {
			if isUniqueViolation(createErr, constraintCustomerMobile) {
				return rewards.Customer{}, wrapStoreError(errorSubjectCustomer, errorCodeBusy, rewards.ErrBusy)
			}
			return rewards.Customer{}, mapStoreError(errorSubjectCustomer, errorCodeCreate, createErr)
		}
		wallet := Wallet{CustomerID: model.CustomerID}
		if walletErr := store.db.WithContext(ctx).Create(&wallet).Error; walletErr != nil {
			return rewards.Customer{}, mapStoreError(errorSubjectWallet, errorCodeCreate, walletErr)
		}
	} else if err != nil {
		return rewards.Customer{}, mapStoreError(errorSubjectCustomer, errorCodeLookup, err)
	}
	return mapCustomer(model)
}

// CustomerByMobile resolves an existing customer.
func (store *Store) CustomerByMobile(ctx context.Context, mobile rewards.Mobile) (rewards.Customer, error) {
	var model Customer
	err := store.db.WithContext(ctx).Where("mobile = ?", mobile.String()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rewards.Customer{}, wrapStoreError(errorSubjectCustomer, errorCodeGet, rewards.ErrCustomerNotFound)
	}
	if err != nil {
		return rewards.Customer{}, mapStoreError(errorSubjectCustomer, errorCodeGet, err)
	}
	return mapCustomer(model)
}

// Wallet returns the current balance row for a customer.
func (store *Store) Wallet(ctx context.Context, customerID rewards.CustomerID) (rewards.Wallet, error) {
	var model Wallet
	err := store.db.WithContext(ctx).Where("customer_id = ?", customerID.String()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rewards.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeGet, rewards.ErrCustomerNotFound)
	}
	if err != nil {
		return rewards.Wallet{}, mapStoreError(errorSubjectWallet, errorCodeGet, err)
	}
	return mapWallet(model)
}

// CreditWallet increments total and available points. Pure increment: no
// read-before-write, safe to run concurrently with debits.
func (store *Store) CreditWallet(ctx context.Context, customerID rewards.CustomerID, points rewards.Points) error {
	if points <= 0 {
		return wrapStoreError(errorSubjectWallet, errorCodeInvalid, rewards.ErrInvalidPoints)
	}
	result := store.db.WithContext(ctx).
		Model(&Wallet{}).
		Where("customer_id = ?", customerID.String()).
		Updates(map[string]interface{}{
			"total_points":     gorm.Expr("total_points + ?", int64(points)),
			"available_points": gorm.Expr("available_points + ?", int64(points)),
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return mapStoreError(errorSubjectWallet, errorCodeCredit, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectWallet, errorCodeCredit, rewards.ErrCustomerNotFound)
	}
	return nil
}

// DebitWallet moves points from available to redeemed in a single guarded
// update. The sufficiency check and the write are one statement, so two
// concurrent debits cannot both pass against a stale balance.
func (store *Store) DebitWallet(ctx context.Context, customerID rewards.CustomerID, points rewards.Points) error {
	if points <= 0 {
		return wrapStoreError(errorSubjectWallet, errorCodeInvalid, rewards.ErrInvalidPoints)
	}
	result := store.db.WithContext(ctx).
		Model(&Wallet{}).
		Where("customer_id = ? AND available_points >= ?", customerID.String(), int64(points)).
		Updates(map[string]interface{}{
			"redeemed_points":  gorm.Expr("redeemed_points + ?", int64(points)),
			"available_points": gorm.Expr("available_points - ?", int64(points)),
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return mapStoreError(errorSubjectWallet, errorCodeDebit, result.Error)
	}
	if result.RowsAffected == 0 {
		var model Wallet
		err := store.db.WithContext(ctx).Where("customer_id = ?", customerID.String()).Take(&model).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return wrapStoreError(errorSubjectWallet, errorCodeDebit, rewards.ErrCustomerNotFound)
		}
		if err != nil {
			return mapStoreError(errorSubjectWallet, errorCodeDebit, err)
		}
		return wrapStoreError(errorSubjectWallet, errorCodeDebit, rewards.ErrInsufficientBalance)
	}
	return nil
}

// InsertBill appends an immutable purchase record. A reused bill number is a
// terminal conflict, not a retry condition.
func (store *Store) InsertBill(ctx context.Context, bill rewards.Bill) error {
	model := Bill{
		BillNo:       bill.BillNumber.String(),
		CustomerID:   bill.CustomerID.String(),
		Mobile:       bill.Mobile.String(),
		FuelType:     bill.FuelType.String(),
		Quantity:     bill.Quantity,
		Amount:       bill.Amount,
		FuelDensity:  bill.FuelDensity,
		PointsEarned: int64(bill.PointsEarned),
		CreatedBy:    bill.CreatedBy.String(),
		CreatedAt:    unixOrNow(bill.CreatedUnixUTC),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, constraintBillNumber) {
		return wrapStoreError(errorSubjectBill, errorCodeDuplicate, rewards.ErrDuplicateBillNumber)
	}
	if err != nil {
		return mapStoreError(errorSubjectBill, errorCodeInsert, err)
	}
	return nil
}

// InsertRedemption appends an immutable redemption record.
func (store *Store) InsertRedemption(ctx context.Context, redemption rewards.Redemption) error {
	var productID *string
	if redemption.ProductID != nil {
		value := redemption.ProductID.String()
		productID = &value
	}
	var billNo *string
	if redemption.BillNumber != nil {
		value := redemption.BillNumber.String()
		billNo = &value
	}
	model := Redemption{
		CustomerID:     redemption.CustomerID.String(),
		Kind:           string(redemption.Kind),
		PointsUsed:     int64(redemption.PointsUsed),
		DiscountAmount: redemption.DiscountAmount,
		ProductID:      productID,
		BillNo:         billNo,
		CreatedBy:      redemption.CreatedBy.String(),
		CreatedAt:      unixOrNow(redemption.CreatedUnixUTC),
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return mapStoreError(errorSubjectRedeem, errorCodeInsert, err)
	}
	return nil
}

// ProductForRedemption loads an active product, locking the row for the
// remainder of the transaction.
func (store *Store) ProductForRedemption(ctx context.Context, productID rewards.ProductID) (rewards.Product, error) {
	var model Product
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND is_active = ?", productID.String(), true).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rewards.Product{}, wrapStoreError(errorSubjectProduct, errorCodeGet, rewards.ErrProductUnavailable)
	}
	if err != nil {
		return rewards.Product{}, mapStoreError(errorSubjectProduct, errorCodeGet, err)
	}
	return mapProduct(model)
}

// DecrementProductStock takes one unit of stock, guarded so the count can
// never go negative.
func (store *Store) DecrementProductStock(ctx context.Context, productID rewards.ProductID) error {
	result := store.db.WithContext(ctx).
		Model(&Product{}).
		Where("product_id = ? AND stock_quantity > 0", productID.String()).
		Updates(map[string]interface{}{
			"stock_quantity": gorm.Expr("stock_quantity - 1"),
			"updated_at":     time.Now().UTC(),
		})
	if result.Error != nil {
		return mapStoreError(errorSubjectProduct, errorCodeDecrement, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectProduct, errorCodeDecrement, rewards.ErrOutOfStock)
	}
	return nil
}

// ListBills returns one page of a customer's bill history, newest first.
func (store *Store) ListBills(ctx context.Context, mobile rewards.Mobile, page int, limit int) (rewards.BillPage, error) {
	var total int64
	if err := store.db.WithContext(ctx).Model(&Bill{}).Where("mobile = ?", mobile.String()).Count(&total).Error; err != nil {
		return rewards.BillPage{}, mapStoreError(errorSubjectBill, errorCodeList, err)
	}
	var rows []Bill
	err := store.db.WithContext(ctx).
		Where("mobile = ?", mobile.String()).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return rewards.BillPage{}, mapStoreError(errorSubjectBill, errorCodeList, err)
	}
	bills := make([]rewards.Bill, 0, len(rows))
	for _, row := range rows {
		bill, err := mapBill(row)
		if err != nil {
			return rewards.BillPage{}, wrapStoreError(errorSubjectBill, errorCodeInvalid, err)
		}
		bills = append(bills, bill)
	}
	return rewards.BillPage{Bills: bills, Total: total}, nil
}

// ListRedemptions returns a customer's redemption history, newest first.
func (store *Store) ListRedemptions(ctx context.Context, customerID rewards.CustomerID) ([]rewards.Redemption, error) {
	var rows []Redemption
	err := store.db.WithContext(ctx).
		Where("customer_id = ?", customerID.String()).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, mapStoreError(errorSubjectRedeem, errorCodeList, err)
	}
	productNames, err := store.productNames(ctx, rows)
	if err != nil {
		return nil, err
	}
	redemptions := make([]rewards.Redemption, 0, len(rows))
	for _, row := range rows {
		redemption, err := mapRedemption(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectRedeem, errorCodeInvalid, err)
		}
		if row.ProductID != nil {
			redemption.ProductName = productNames[*row.ProductID]
		}
		redemptions = append(redemptions, redemption)
	}
	return redemptions, nil
}

func (store *Store) productNames(ctx context.Context, rows []Redemption) (map[string]string, error) {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.ProductID != nil {
			ids = append(ids, *row.ProductID)
		}
	}
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var products []Product
	if err := store.db.WithContext(ctx).Where("product_id IN ?", ids).Find(&products).Error; err != nil {
		return nil, mapStoreError(errorSubjectProduct, errorCodeList, err)
	}
	for _, product := range products {
		names[product.ProductID] = product.Name
	}
	return names, nil
}

// ListProducts returns catalog products ordered by category and name.
func (store *Store) ListProducts(ctx context.Context, category string, activeOnly bool) ([]rewards.Product, error) {
	query := store.db.WithContext(ctx).Model(&Product{})
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var rows []Product
	if err := query.Order("category, name").Find(&rows).Error; err != nil {
		return nil, mapStoreError(errorSubjectProduct, errorCodeList, err)
	}
	products := make([]rewards.Product, 0, len(rows))
	for _, row := range rows {
		product, err := mapProduct(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectProduct, errorCodeInvalid, err)
		}
		products = append(products, product)
	}
	return products, nil
}

// CreateProduct inserts a catalog product and returns the stored record.
func (store *Store) CreateProduct(ctx context.Context, product rewards.Product) (rewards.Product, error) {
	model := Product{
		Name:           product.Name,
		Description:    product.Description,
		Category:       product.Category,
		PointsRequired: int64(product.PointsRequired),
		StockQuantity:  product.StockQuantity,
		ImageURL:       product.ImageURL,
		IsActive:       true,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return rewards.Product{}, mapStoreError(errorSubjectProduct, errorCodeCreate, err)
	}
	return mapProduct(model)
}

// UpdateProduct applies a partial catalog update.
func (store *Store) UpdateProduct(ctx context.Context, productID rewards.ProductID, update rewards.ProductUpdate) error {
	changes := map[string]interface{}{}
	if update.Name != nil {
		changes["name"] = *update.Name
	}
	if update.Description != nil {
		changes["description"] = *update.Description
	}
	if update.Category != nil {
		changes["category"] = *update.Category
	}
	if update.PointsRequired != nil {
		changes["points_required"] = int64(*update.PointsRequired)
	}
	if update.StockQuantity != nil {
		changes["stock_quantity"] = *update.StockQuantity
	}
	if update.ImageURL != nil {
		changes["image_url"] = *update.ImageURL
	}
	if update.Active != nil {
		changes["is_active"] = *update.Active
	}
	if len(changes) == 0 {
		return nil
	}
	changes["updated_at"] = time.Now().UTC()
	result := store.db.WithContext(ctx).
		Model(&Product{}).
		Where("product_id = ?", productID.String()).
		Updates(changes)
	if result.Error != nil {
		return mapStoreError(errorSubjectProduct, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectProduct, errorCodeUpdate, rewards.ErrProductUnavailable)
	}
	return nil
}

func mapCustomer(model Customer) (rewards.Customer, error) {
	customerID, err := rewards.NewCustomerID(model.CustomerID)
	if err != nil {
		return rewards.Customer{}, wrapStoreError(errorSubjectCustomer, errorCodeInvalid, err)
	}
	mobile, err := rewards.NewMobile(model.Mobile)
	if err != nil {
		return rewards.Customer{}, wrapStoreError(errorSubjectCustomer, errorCodeInvalid, err)
	}
	return rewards.Customer{
		CustomerID: customerID,
		Mobile:     mobile,
		Name:       model.Name,
		Role:       rewards.Role(model.Role),
	}, nil
}

func mapWallet(model Wallet) (rewards.Wallet, error) {
	customerID, err := rewards.NewCustomerID(model.CustomerID)
	if err != nil {
		return rewards.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeInvalid, err)
	}
	if model.AvailablePoints < 0 || model.TotalPoints-model.RedeemedPoints != model.AvailablePoints {
		return rewards.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeInvalid, rewards.ErrInvalidBalance)
	}
	return rewards.Wallet{
		CustomerID:      customerID,
		TotalPoints:     rewards.Points(model.TotalPoints),
		RedeemedPoints:  rewards.Points(model.RedeemedPoints),
		AvailablePoints: rewards.Points(model.AvailablePoints),
	}, nil
}

func mapBill(model Bill) (rewards.Bill, error) {
	billNumber, err := rewards.NewBillNumber(model.BillNo)
	if err != nil {
		return rewards.Bill{}, err
	}
	customerID, err := rewards.NewCustomerID(model.CustomerID)
	if err != nil {
		return rewards.Bill{}, err
	}
	mobile, err := rewards.NewMobile(model.Mobile)
	if err != nil {
		return rewards.Bill{}, err
	}
	fuelType, err := rewards.NewFuelType(model.FuelType)
	if err != nil {
		return rewards.Bill{}, err
	}
	createdBy, err := rewards.NewActorID(model.CreatedBy)
	if err != nil {
		return rewards.Bill{}, err
	}
	return rewards.Bill{
		BillNumber:     billNumber,
		CustomerID:     customerID,
		Mobile:         mobile,
		FuelType:       fuelType,
		Quantity:       model.Quantity,
		Amount:         model.Amount,
		FuelDensity:    model.FuelDensity,
		PointsEarned:   rewards.Points(model.PointsEarned),
		CreatedBy:      createdBy,
		CreatedUnixUTC: model.CreatedAt.Unix(),
	}, nil
}

func mapRedemption(model Redemption) (rewards.Redemption, error) {
	customerID, err := rewards.NewCustomerID(model.CustomerID)
	if err != nil {
		return rewards.Redemption{}, err
	}
	createdBy, err := rewards.NewActorID(model.CreatedBy)
	if err != nil {
		return rewards.Redemption{}, err
	}
	var productID *rewards.ProductID
	if model.ProductID != nil {
		parsed, err := rewards.NewProductID(*model.ProductID)
		if err != nil {
			return rewards.Redemption{}, err
		}
		productID = &parsed
	}
	var billNumber *rewards.BillNumber
	if model.BillNo != nil {
		parsed, err := rewards.NewBillNumber(*model.BillNo)
		if err != nil {
			return rewards.Redemption{}, err
		}
		billNumber = &parsed
	}
	return rewards.Redemption{
		RedemptionID:   model.RedemptionID,
		CustomerID:     customerID,
		Kind:           rewards.RedemptionKind(model.Kind),
		PointsUsed:     rewards.Points(model.PointsUsed),
		DiscountAmount: model.DiscountAmount,
		ProductID:      productID,
		BillNumber:     billNumber,
		CreatedBy:      createdBy,
		CreatedUnixUTC: model.CreatedAt.Unix(),
	}, nil
}

func mapProduct(model Product) (rewards.Product, error) {
	productID, err := rewards.NewProductID(model.ProductID)
	if err != nil {
		return rewards.Product{}, wrapStoreError(errorSubjectProduct, errorCodeInvalid, err)
	}
	return rewards.Product{
		ProductID:      productID,
		Name:           model.Name,
		Description:    model.Description,
		Category:       model.Category,
		PointsRequired: rewards.Points(model.PointsRequired),
		StockQuantity:  model.StockQuantity,
		ImageURL:       model.ImageURL,
		Active:         model.IsActive,
	}, nil
}

func unixOrNow(unixUTC int64) time.Time {
	if unixUTC == 0 {
		return time.Now().UTC()
	}
	return time.Unix(unixUTC, 0).UTC()
}

func wrapStoreError(subject string, code string, err error) error {
	return rewards.WrapError(errorOperationStore, subject, code, err)
}

// mapStoreError wraps a driver error, translating lock contention into the
// retryable busy sentinel.
func mapStoreError(subject string, code string, err error) error {
	if isLockContention(err) {
		return wrapStoreError(subject, errorCodeBusy, rewards.ErrBusy)
	}
	return wrapStoreError(subject, code, err)
}

func isUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraintName
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}

func isLockContention(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgLockNotAvailable || pgErr.Code == pgSerializationError || pgErr.Code == pgDeadlockDetected
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code() & 0xFF
		return code == sqliteBusyCode || code == sqliteLockedCode
	}
	return false
}
