package rewards

import (
	"context"
	"errors"
	"fmt"
)

// FuelRedemptionInput carries a validated fuel-discount redemption request.
type FuelRedemptionInput struct {
	Mobile     Mobile
	BillNumber BillNumber
	FuelAmount float64
	ActorID    ActorID
}

// NewFuelRedemptionInput validates the numeric fields of a fuel redemption request.
func NewFuelRedemptionInput(mobile Mobile, billNumber BillNumber, fuelAmount float64, actorID ActorID) (FuelRedemptionInput, error) {
	if fuelAmount <= 0 {
		return FuelRedemptionInput{}, fmt.Errorf("%w: fuel amount must be greater than zero", ErrInvalidAmount)
	}
	return FuelRedemptionInput{
		Mobile:     mobile,
		BillNumber: billNumber,
		FuelAmount: fuelAmount,
		ActorID:    actorID,
	}, nil
}

// FuelRedemptionReceipt is the committed outcome of a fuel-discount redemption.
type FuelRedemptionReceipt struct {
	PointsUsed      Points
	DiscountAmount  float64
	RemainingPoints Points
}

// ProductRedemptionReceipt is the committed outcome of a product redemption.
type ProductRedemptionReceipt struct {
	ProductName     string
	PointsUsed      Points
	RemainingPoints Points
}

// RedeemForFuel debits exactly the configured threshold from the customer's
// wallet and records a fuel-discount redemption, atomically. The redemption
// unit is fixed-size: partial debits are not allowed. RemainingPoints is the
// post-debit balance read inside the same transaction.
func (service *Service) RedeemForFuel(ctx context.Context, input FuelRedemptionInput) (FuelRedemptionReceipt, error) {
	receipt, customerID, operationError := service.redeemForFuel(ctx, input)
	service.logOperation(ctx, OperationLog{
		Operation:  operationRedeemFuel,
		CustomerID: customerID,
		Mobile:     input.Mobile,
		BillNumber: input.BillNumber,
		Points:     receipt.PointsUsed,
		Error:      operationError,
	})
	if operationError != nil {
		return FuelRedemptionReceipt{}, operationError
	}
	service.notify(ctx, customerID,
		fmt.Sprintf("You redeemed %d points for %.2f discount on fuel!", receipt.PointsUsed, receipt.DiscountAmount),
		NotificationRedemption)
	return receipt, nil
}

func (service *Service) redeemForFuel(ctx context.Context, input FuelRedemptionInput) (FuelRedemptionReceipt, CustomerID, error) {
	threshold, err := service.settingInt(ctx, SettingRedemptionThreshold)
	if err != nil {
		return FuelRedemptionReceipt{}, CustomerID{}, err
	}
	if threshold <= 0 {
		return FuelRedemptionReceipt{}, CustomerID{}, WrapError("settings", SettingRedemptionThreshold, "parse", ErrInvalidSetting)
	}
	discountPercent, err := service.settingInt(ctx, SettingFuelDiscountPercentage)
	if err != nil {
		return FuelRedemptionReceipt{}, CustomerID{}, err
	}
	if discountPercent > 100 {
		return FuelRedemptionReceipt{}, CustomerID{}, WrapError("settings", SettingFuelDiscountPercentage, "parse", ErrInvalidSetting)
	}

	var receipt FuelRedemptionReceipt
	var customerID CustomerID
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		customer, err := transactionStore.CustomerByMobile(ctx, input.Mobile)
		if err != nil {
			return err
		}
		customerID = customer.CustomerID
		pointsToDebit := Points(threshold)
		if err := transactionStore.DebitWallet(ctx, customer.CustomerID, pointsToDebit); err != nil {
			if errors.Is(err, ErrInsufficientBalance) {
				return fmt.Errorf("%w: minimum %d points required", ErrBelowRedemptionThreshold, threshold)
			}
			return err
		}
		discountAmount := input.FuelAmount * float64(discountPercent) / 100
		billNumber := input.BillNumber
		redemption := Redemption{
			CustomerID:     customer.CustomerID,
			Kind:           RedemptionFuelDiscount,
			PointsUsed:     pointsToDebit,
			DiscountAmount: discountAmount,
			BillNumber:     &billNumber,
			CreatedBy:      input.ActorID,
			CreatedUnixUTC: service.nowFn(),
		}
		if err := transactionStore.InsertRedemption(ctx, redemption); err != nil {
			return err
		}
		wallet, err := transactionStore.Wallet(ctx, customer.CustomerID)
		if err != nil {
			return err
		}
		receipt = FuelRedemptionReceipt{
			PointsUsed:      pointsToDebit,
			DiscountAmount:  discountAmount,
			RemainingPoints: wallet.AvailablePoints,
		}
		return nil
	})
	return receipt, customerID, operationError
}

// RedeemForProduct exchanges points for a catalog product: stock is confirmed,
// the wallet is debited, stock is decremented, and the redemption is recorded,
// all in one transaction. A failure at any step leaves stock and balance
// untouched.
func (service *Service) RedeemForProduct(ctx context.Context, customerID CustomerID, productID ProductID) (ProductRedemptionReceipt, error) {
	receipt, operationError := service.redeemForProduct(ctx, customerID, productID)
	service.logOperation(ctx, OperationLog{
		Operation:  operationRedeemProduct,
		CustomerID: customerID,
		ProductID:  productID,
		Points:     receipt.PointsUsed,
		Error:      operationError,
	})
	if operationError != nil {
		return ProductRedemptionReceipt{}, operationError
	}
	service.notify(ctx, customerID,
		fmt.Sprintf("You redeemed %d points for %s!", receipt.PointsUsed, receipt.ProductName),
		NotificationRedemption)
	return receipt, nil
}

func (service *Service) redeemForProduct(ctx context.Context, customerID CustomerID, productID ProductID) (ProductRedemptionReceipt, error) {
	var receipt ProductRedemptionReceipt
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		product, err := transactionStore.ProductForRedemption(ctx, productID)
		if err != nil {
			return err
		}
		if product.StockQuantity <= 0 {
			return ErrOutOfStock
		}
		if product.PointsRequired <= 0 {
			return fmt.Errorf("%w: product requires no points", ErrInvalidPoints)
		}
		if err := transactionStore.DebitWallet(ctx, customerID, product.PointsRequired); err != nil {
			return err
		}
		if err := transactionStore.DecrementProductStock(ctx, productID); err != nil {
			return err
		}
		actorID, err := NewActorID(customerID.String())
		if err != nil {
			return err
		}
		redemption := Redemption{
			CustomerID:     customerID,
			Kind:           RedemptionProduct,
			PointsUsed:     product.PointsRequired,
			ProductID:      &product.ProductID,
			ProductName:    product.Name,
			CreatedBy:      actorID,
			CreatedUnixUTC: service.nowFn(),
		}
		if err := transactionStore.InsertRedemption(ctx, redemption); err != nil {
			return err
		}
		wallet, err := transactionStore.Wallet(ctx, customerID)
		if err != nil {
			return err
		}
		receipt = ProductRedemptionReceipt{
			ProductName:     product.Name,
			PointsUsed:      product.PointsRequired,
			RemainingPoints: wallet.AvailablePoints,
		}
		return nil
	})
	if operationError != nil {
		return ProductRedemptionReceipt{}, operationError
	}
	return receipt, nil
}
