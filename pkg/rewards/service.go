package rewards

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Service contains the ledger domain logic over a Store. Bill ingestion and
// redemption are the only wallet mutators; each runs as one storage transaction
// followed by a best-effort notification.
type Service struct {
	store    Store
	settings Settings
	notifier Notifier
	nowFn    func() int64
	logger   OperationLogger
}

// NewService wires a Service.
func NewService(store Store, settings Settings, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if settings == nil {
		return nil, fmt.Errorf("%w: settings dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, settings: settings, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// BillInput carries a validated bill ingestion request.
type BillInput struct {
	BillNumber  BillNumber
	Mobile      Mobile
	FuelType    FuelType
	Quantity    float64
	Amount      float64
	FuelDensity *float64
	ActorID     ActorID
}

// NewBillInput validates the numeric fields of a bill ingestion request.
func NewBillInput(billNumber BillNumber, mobile Mobile, fuelType FuelType, quantity float64, amount float64, fuelDensity *float64, actorID ActorID) (BillInput, error) {
	if amount <= 0 {
		return BillInput{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if quantity <= 0 {
		return BillInput{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidQuantity)
	}
	if fuelDensity != nil && *fuelDensity <= 0 {
		return BillInput{}, fmt.Errorf("%w: fuel density must be greater than zero", ErrInvalidAmount)
	}
	return BillInput{
		BillNumber:  billNumber,
		Mobile:      mobile,
		FuelType:    fuelType,
		Quantity:    quantity,
		Amount:      amount,
		FuelDensity: fuelDensity,
		ActorID:     actorID,
	}, nil
}

// BillReceipt is the committed outcome of a bill ingestion.
type BillReceipt struct {
	BillNumber      BillNumber
	PointsEarned    Points
	AvailablePoints Points
}

// IngestBill records a purchase and credits the owning wallet as one atomic
// unit, creating the customer and a zeroed wallet on first sighting of the
// mobile. The resulting balance is read back inside the same transaction.
func (service *Service) IngestBill(ctx context.Context, input BillInput) (BillReceipt, error) {
	receipt, customerID, operationError := service.ingestBill(ctx, input)
	service.logOperation(ctx, OperationLog{
		Operation:  operationIngestBill,
		CustomerID: customerID,
		Mobile:     input.Mobile,
		BillNumber: input.BillNumber,
		Points:     receipt.PointsEarned,
		Error:      operationError,
	})
	if operationError != nil {
		return BillReceipt{}, operationError
	}
	service.notify(ctx, customerID,
		fmt.Sprintf("You have earned %d reward points. Total balance: %d points", receipt.PointsEarned, receipt.AvailablePoints),
		NotificationPointsEarned)
	return receipt, nil
}

func (service *Service) ingestBill(ctx context.Context, input BillInput) (BillReceipt, CustomerID, error) {
	minPurchase, err := service.settingFloat(ctx, SettingMinPurchaseAmount)
	if err != nil {
		return BillReceipt{}, CustomerID{}, err
	}
	if input.Amount < minPurchase {
		return BillReceipt{}, CustomerID{}, fmt.Errorf("%w: minimum purchase amount is %.2f", ErrBelowMinimumPurchase, minPurchase)
	}

	var receipt BillReceipt
	var customerID CustomerID
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		customer, err := transactionStore.GetOrCreateCustomer(ctx, input.Mobile)
		if err != nil {
			return err
		}
		customerID = customer.CustomerID
		pointsEarned := ComputePoints(input.Amount, input.FuelType, input.FuelDensity)
		bill := Bill{
			BillNumber:     input.BillNumber,
			CustomerID:     customer.CustomerID,
			Mobile:         input.Mobile,
			FuelType:       input.FuelType,
			Quantity:       input.Quantity,
			Amount:         input.Amount,
			FuelDensity:    input.FuelDensity,
			PointsEarned:   pointsEarned,
			CreatedBy:      input.ActorID,
			CreatedUnixUTC: service.nowFn(),
		}
		if err := transactionStore.InsertBill(ctx, bill); err != nil {
			return err
		}
		if pointsEarned > 0 {
			if err := transactionStore.CreditWallet(ctx, customer.CustomerID, pointsEarned); err != nil {
				return err
			}
		}
		wallet, err := transactionStore.Wallet(ctx, customer.CustomerID)
		if err != nil {
			return err
		}
		receipt = BillReceipt{
			BillNumber:      input.BillNumber,
			PointsEarned:    pointsEarned,
			AvailablePoints: wallet.AvailablePoints,
		}
		return nil
	})
	return receipt, customerID, operationError
}

// Balance returns the wallet snapshot for a known customer. The snapshot is
// informational; mutation decisions always re-check inside a transaction.
func (service *Service) Balance(ctx context.Context, mobile Mobile) (Wallet, error) {
	customer, err := service.store.CustomerByMobile(ctx, mobile)
	if err != nil {
		return Wallet{}, err
	}
	return service.store.Wallet(ctx, customer.CustomerID)
}

// BillHistory lists a customer's bills, newest first.
func (service *Service) BillHistory(ctx context.Context, mobile Mobile, page int, limit int) (BillPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	return service.store.ListBills(ctx, mobile, page, limit)
}

// RedemptionHistory lists a customer's redemptions, newest first.
func (service *Service) RedemptionHistory(ctx context.Context, customerID CustomerID) ([]Redemption, error) {
	return service.store.ListRedemptions(ctx, customerID)
}

func (service *Service) settingFloat(ctx context.Context, key string) (float64, error) {
	raw, err := service.settings.Setting(ctx, key)
	if err != nil {
		return 0, WrapError("settings", key, "lookup", err)
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		return 0, WrapError("settings", key, "parse", ErrInvalidSetting)
	}
	return value, nil
}

func (service *Service) settingInt(ctx context.Context, key string) (int64, error) {
	raw, err := service.settings.Setting(ctx, key)
	if err != nil {
		return 0, WrapError("settings", key, "lookup", err)
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return 0, WrapError("settings", key, "parse", ErrInvalidSetting)
	}
	return value, nil
}

func (service *Service) notify(ctx context.Context, customerID CustomerID, message string, category string) {
	if service.notifier == nil {
		return
	}
	service.notifier.Notify(ctx, customerID, message, category)
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

// IsRetryable reports whether the caller may safely retry the whole operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBusy)
}
