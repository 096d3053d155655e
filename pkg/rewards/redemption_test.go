package rewards

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestRedeemForFuelDebitsThresholdAndRecordsRedemption(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	notifier := &recorderNotifier{}
	service := mustNewService(test, store, defaultStubSettings(), WithNotifier(notifier))
	customer := store.seedCustomer(test, "9333333333", 8)

	input, err := NewFuelRedemptionInput(customer.Mobile, mustBillNumber(test, "BILL-R1"), 1000, mustActorID(test, "staff-1"))
	if err != nil {
		test.Fatalf("input: %v", err)
	}
	receipt, err := service.RedeemForFuel(context.Background(), input)
	if err != nil {
		test.Fatalf("redeem: %v", err)
	}
	if receipt.PointsUsed != 5 {
		test.Fatalf("expected threshold debit of 5, got %d", receipt.PointsUsed)
	}
	if receipt.DiscountAmount != 100 {
		test.Fatalf("expected discount 100, got %.2f", receipt.DiscountAmount)
	}
	if receipt.RemainingPoints != 3 {
		test.Fatalf("expected post-debit remaining 3, got %d", receipt.RemainingPoints)
	}

	redemptions, err := store.ListRedemptions(context.Background(), customer.CustomerID)
	if err != nil {
		test.Fatalf("list redemptions: %v", err)
	}
	if len(redemptions) != 1 {
		test.Fatalf("expected one redemption, got %d", len(redemptions))
	}
	recorded := redemptions[0]
	if recorded.Kind != RedemptionFuelDiscount || recorded.PointsUsed != 5 || recorded.DiscountAmount != 100 {
		test.Fatalf("unexpected redemption record: %+v", recorded)
	}
	if recorded.BillNumber == nil || recorded.BillNumber.String() != "BILL-R1" {
		test.Fatalf("expected bill reference on fuel redemption: %+v", recorded)
	}
	if len(notifier.messages) != 1 || !strings.Contains(notifier.messages[0], "5 points") {
		test.Fatalf("expected redemption notification, got %v", notifier.messages)
	}
}

func TestRedeemForFuelUnknownCustomer(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewService(test, store, defaultStubSettings())

	input, err := NewFuelRedemptionInput(mustMobile(test, "9444444444"), mustBillNumber(test, "BILL-R2"), 500, mustActorID(test, "staff-1"))
	if err != nil {
		test.Fatalf("input: %v", err)
	}
	if _, err := service.RedeemForFuel(context.Background(), input); !errors.Is(err, ErrCustomerNotFound) {
		test.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestRedeemForFuelBelowThreshold(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewService(test, store, defaultStubSettings())
	customer := store.seedCustomer(test, "9555555555", 4)

	input, err := NewFuelRedemptionInput(customer.Mobile, mustBillNumber(test, "BILL-R3"), 500, mustActorID(test, "staff-1"))
	if err != nil {
		test.Fatalf("input: %v", err)
	}
	_, err = service.RedeemForFuel(context.Background(), input)
	if !errors.Is(err, ErrBelowRedemptionThreshold) {
		test.Fatalf("expected ErrBelowRedemptionThreshold, got %v", err)
	}
	wallet := store.mustWallet(test, customer.CustomerID)
	if wallet.AvailablePoints != 4 || wallet.RedeemedPoints != 0 {
		test.Fatalf("wallet changed after rejected redemption: %+v", wallet)
	}
}

func TestConcurrentFuelRedemptionsExactlyOneSucceeds(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewService(test, store, defaultStubSettings())
	customer := store.seedCustomer(test, "9666666666", 5)

	input, err := NewFuelRedemptionInput(customer.Mobile, mustBillNumber(test, "BILL-R4"), 1000, mustActorID(test, "staff-1"))
	if err != nil {
		test.Fatalf("input: %v", err)
	}

	results := make([]error, 2)
	var waitGroup sync.WaitGroup
	for i := 0; i < 2; i++ {
		waitGroup.Add(1)
		go func(index int) {
			defer waitGroup.Done()
			_, results[index] = service.RedeemForFuel(context.Background(), input)
		}(i)
	}
	waitGroup.Wait()

	var successes, thresholdFailures int
	for _, result := range results {
		switch {
		case result == nil:
			successes++
		case errors.Is(result, ErrBelowRedemptionThreshold):
			thresholdFailures++
		default:
			test.Fatalf("unexpected error: %v", result)
		}
	}
	if successes != 1 || thresholdFailures != 1 {
		test.Fatalf("expected exactly one success and one threshold failure, got %d/%d", successes, thresholdFailures)
	}
	wallet := store.mustWallet(test, customer.CustomerID)
	if wallet.AvailablePoints != 0 {
		test.Fatalf("expected final balance 0, got %d", wallet.AvailablePoints)
	}
	if wallet.AvailablePoints != wallet.TotalPoints-wallet.RedeemedPoints {
		test.Fatalf("invariant broken: %+v", wallet)
	}
}

func TestRedeemForProduct(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	notifier := &recorderNotifier{}
	service := mustNewService(test, store, defaultStubSettings(), WithNotifier(notifier))
	customer := store.seedCustomer(test, "9777777777", 20)
	product := store.seedProduct(test, "Travel Mug", 15, 3)

	receipt, err := service.RedeemForProduct(context.Background(), customer.CustomerID, product.ProductID)
	if err != nil {
		test.Fatalf("redeem: %v", err)
	}
	if receipt.ProductName != "Travel Mug" || receipt.PointsUsed != 15 || receipt.RemainingPoints != 5 {
		test.Fatalf("unexpected receipt: %+v", receipt)
	}

	stored, err := store.ProductForRedemption(context.Background(), product.ProductID)
	if err != nil {
		test.Fatalf("product lookup: %v", err)
	}
	if stored.StockQuantity != 2 {
		test.Fatalf("expected stock 2, got %d", stored.StockQuantity)
	}
	if len(notifier.messages) != 1 || !strings.Contains(notifier.messages[0], "Travel Mug") {
		test.Fatalf("expected product notification, got %v", notifier.messages)
	}
}

func TestRedeemForProductUnavailable(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewService(test, store, defaultStubSettings())
	customer := store.seedCustomer(test, "9888888888", 20)

	missing, err := NewProductID("product-missing")
	if err != nil {
		test.Fatalf("product id: %v", err)
	}
	if _, err := service.RedeemForProduct(context.Background(), customer.CustomerID, missing); !errors.Is(err, ErrProductUnavailable) {
		test.Fatalf("expected ErrProductUnavailable, got %v", err)
	}

	product := store.seedProduct(test, "Key Chain", 5, 4)
	inactive := false
	if err := store.UpdateProduct(context.Background(), product.ProductID, ProductUpdate{Active: &inactive}); err != nil {
		test.Fatalf("deactivate: %v", err)
	}
	if _, err := service.RedeemForProduct(context.Background(), customer.CustomerID, product.ProductID); !errors.Is(err, ErrProductUnavailable) {
		test.Fatalf("expected ErrProductUnavailable for inactive product, got %v", err)
	}
}

func TestRedeemForProductInsufficientBalanceLeavesStock(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewService(test, store, defaultStubSettings())
	customer := store.seedCustomer(test, "9999999999", 3)
	product := store.seedProduct(test, "Cap", 10, 2)

	_, err := service.RedeemForProduct(context.Background(), customer.CustomerID, product.ProductID)
	if !errors.Is(err, ErrInsufficientBalance) {
		test.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	stored, err := store.ProductForRedemption(context.Background(), product.ProductID)
	if err != nil {
		test.Fatalf("product lookup: %v", err)
	}
	if stored.StockQuantity != 2 {
		test.Fatalf("stock changed after rejected redemption: %d", stored.StockQuantity)
	}
	wallet := store.mustWallet(test, customer.CustomerID)
	if wallet.AvailablePoints != 3 {
		test.Fatalf("wallet changed after rejected redemption: %+v", wallet)
	}
}

func TestRedeemForProductOutOfStock(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewService(test, store, defaultStubSettings())
	customer := store.seedCustomer(test, "9123456789", 50)
	product := store.seedProduct(test, "Bottle", 10, 0)

	_, err := service.RedeemForProduct(context.Background(), customer.CustomerID, product.ProductID)
	if !errors.Is(err, ErrOutOfStock) {
		test.Fatalf("expected ErrOutOfStock, got %v", err)
	}
	wallet := store.mustWallet(test, customer.CustomerID)
	if wallet.AvailablePoints != 50 {
		test.Fatalf("wallet debited despite empty stock: %+v", wallet)
	}
}

func TestConcurrentProductRedemptionsLastUnit(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewService(test, store, defaultStubSettings())
	first := store.seedCustomer(test, "9100000001", 30)
	second := store.seedCustomer(test, "9100000002", 30)
	product := store.seedProduct(test, "Sunglasses", 10, 1)

	customers := []CustomerID{first.CustomerID, second.CustomerID}
	results := make([]error, 2)
	var waitGroup sync.WaitGroup
	for i := 0; i < 2; i++ {
		waitGroup.Add(1)
		go func(index int) {
			defer waitGroup.Done()
			_, results[index] = service.RedeemForProduct(context.Background(), customers[index], product.ProductID)
		}(i)
	}
	waitGroup.Wait()

	var successes, stockFailures int
	for _, result := range results {
		switch {
		case result == nil:
			successes++
		case errors.Is(result, ErrOutOfStock):
			stockFailures++
		default:
			test.Fatalf("unexpected error: %v", result)
		}
	}
	if successes != 1 || stockFailures != 1 {
		test.Fatalf("expected exactly one success and one out-of-stock, got %d/%d", successes, stockFailures)
	}
	stored, err := store.ProductForRedemption(context.Background(), product.ProductID)
	if err != nil {
		test.Fatalf("product lookup: %v", err)
	}
	if stored.StockQuantity != 0 {
		test.Fatalf("expected final stock 0, got %d", stored.StockQuantity)
	}
}

func TestRedeemForFuelRejectsBadDiscountSetting(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	settings := defaultStubSettings()
	settings[SettingFuelDiscountPercentage] = "150"
	service := mustNewService(test, store, settings)
	customer := store.seedCustomer(test, "9155555555", 10)

	input, err := NewFuelRedemptionInput(customer.Mobile, mustBillNumber(test, "BILL-R5"), 500, mustActorID(test, "staff-1"))
	if err != nil {
		test.Fatalf("input: %v", err)
	}
	if _, err := service.RedeemForFuel(context.Background(), input); !errors.Is(err, ErrInvalidSetting) {
		test.Fatalf("expected ErrInvalidSetting, got %v", err)
	}
}
