package rewards

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

// stubState is the in-memory data behind stubStore. WithTx serializes
// transactions with a mutex and restores a snapshot on rollback.
type stubState struct {
	customers   map[string]Customer // mobile -> customer
	wallets     map[string]Wallet   // customer id -> wallet
	bills       map[string]Bill     // bill number -> bill
	redemptions []Redemption
	products    map[string]Product // product id -> product
	nextID      int
}

func newStubState() *stubState {
	return &stubState{
		customers: map[string]Customer{},
		wallets:   map[string]Wallet{},
		bills:     map[string]Bill{},
		products:  map[string]Product{},
	}
}

func (state *stubState) clone() *stubState {
	copied := newStubState()
	for key, value := range state.customers {
		copied.customers[key] = value
	}
	for key, value := range state.wallets {
		copied.wallets[key] = value
	}
	for key, value := range state.bills {
		copied.bills[key] = value
	}
	for key, value := range state.products {
		copied.products[key] = value
	}
	copied.redemptions = append(copied.redemptions, state.redemptions...)
	copied.nextID = state.nextID
	return copied
}

type stubStore struct {
	mu    sync.Mutex
	state *stubState
	inTx  bool
}

func newStubStore() *stubStore {
	return &stubStore{state: newStubState()}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	if store.inTx {
		return fn(ctx, store)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	snapshot := store.state.clone()
	transactionStore := &stubStore{state: store.state, inTx: true}
	if err := fn(ctx, transactionStore); err != nil {
		*store.state = *snapshot
		return err
	}
	return nil
}

func (store *stubStore) locked(fn func() error) error {
	if store.inTx {
		return fn()
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	return fn()
}

func (store *stubStore) GetOrCreateCustomer(ctx context.Context, mobile Mobile) (Customer, error) {
	var customer Customer
	err := store.locked(func() error {
		if existing, ok := store.state.customers[mobile.String()]; ok {
			customer = existing
			return nil
		}
		store.state.nextID++
		customerID, err := NewCustomerID(fmt.Sprintf("customer-%d", store.state.nextID))
		if err != nil {
			return err
		}
		customer = Customer{CustomerID: customerID, Mobile: mobile, Role: RoleCustomer}
		store.state.customers[mobile.String()] = customer
		store.state.wallets[customerID.String()] = Wallet{CustomerID: customerID}
		return nil
	})
	return customer, err
}

func (store *stubStore) CustomerByMobile(ctx context.Context, mobile Mobile) (Customer, error) {
	var customer Customer
	err := store.locked(func() error {
		existing, ok := store.state.customers[mobile.String()]
		if !ok {
			return ErrCustomerNotFound
		}
		customer = existing
		return nil
	})
	return customer, err
}

func (store *stubStore) Wallet(ctx context.Context, customerID CustomerID) (Wallet, error) {
	var wallet Wallet
	err := store.locked(func() error {
		existing, ok := store.state.wallets[customerID.String()]
		if !ok {
			return ErrCustomerNotFound
		}
		wallet = existing
		return nil
	})
	return wallet, err
}

func (store *stubStore) CreditWallet(ctx context.Context, customerID CustomerID, points Points) error {
	if points <= 0 {
		return ErrInvalidPoints
	}
	return store.locked(func() error {
		wallet, ok := store.state.wallets[customerID.String()]
		if !ok {
			return ErrCustomerNotFound
		}
		wallet.TotalPoints += points
		wallet.AvailablePoints += points
		store.state.wallets[customerID.String()] = wallet
		return nil
	})
}

func (store *stubStore) DebitWallet(ctx context.Context, customerID CustomerID, points Points) error {
	if points <= 0 {
		return ErrInvalidPoints
	}
	return store.locked(func() error {
		wallet, ok := store.state.wallets[customerID.String()]
		if !ok {
			return ErrCustomerNotFound
		}
		if wallet.AvailablePoints < points {
			return ErrInsufficientBalance
		}
		wallet.RedeemedPoints += points
		wallet.AvailablePoints -= points
		store.state.wallets[customerID.String()] = wallet
		return nil
	})
}

func (store *stubStore) InsertBill(ctx context.Context, bill Bill) error {
	return store.locked(func() error {
		if _, ok := store.state.bills[bill.BillNumber.String()]; ok {
			return ErrDuplicateBillNumber
		}
		store.state.bills[bill.BillNumber.String()] = bill
		return nil
	})
}

func (store *stubStore) InsertRedemption(ctx context.Context, redemption Redemption) error {
	return store.locked(func() error {
		store.state.redemptions = append(store.state.redemptions, redemption)
		return nil
	})
}

func (store *stubStore) ProductForRedemption(ctx context.Context, productID ProductID) (Product, error) {
	var product Product
	err := store.locked(func() error {
		existing, ok := store.state.products[productID.String()]
		if !ok || !existing.Active {
			return ErrProductUnavailable
		}
		product = existing
		return nil
	})
	return product, err
}

func (store *stubStore) DecrementProductStock(ctx context.Context, productID ProductID) error {
	return store.locked(func() error {
		product, ok := store.state.products[productID.String()]
		if !ok || product.StockQuantity <= 0 {
			return ErrOutOfStock
		}
		product.StockQuantity--
		store.state.products[productID.String()] = product
		return nil
	})
}

func (store *stubStore) ListBills(ctx context.Context, mobile Mobile, page int, limit int) (BillPage, error) {
	var billPage BillPage
	err := store.locked(func() error {
		for _, bill := range store.state.bills {
			if bill.Mobile == mobile {
				billPage.Bills = append(billPage.Bills, bill)
				billPage.Total++
			}
		}
		return nil
	})
	return billPage, err
}

func (store *stubStore) ListRedemptions(ctx context.Context, customerID CustomerID) ([]Redemption, error) {
	var redemptions []Redemption
	err := store.locked(func() error {
		for _, redemption := range store.state.redemptions {
			if redemption.CustomerID == customerID {
				redemptions = append(redemptions, redemption)
			}
		}
		return nil
	})
	return redemptions, err
}

func (store *stubStore) ListProducts(ctx context.Context, category string, activeOnly bool) ([]Product, error) {
	var products []Product
	err := store.locked(func() error {
		for _, product := range store.state.products {
			if category != "" && product.Category != category {
				continue
			}
			if activeOnly && !product.Active {
				continue
			}
			products = append(products, product)
		}
		return nil
	})
	return products, err
}

func (store *stubStore) CreateProduct(ctx context.Context, product Product) (Product, error) {
	err := store.locked(func() error {
		store.state.nextID++
		productID, idErr := NewProductID(fmt.Sprintf("product-%d", store.state.nextID))
		if idErr != nil {
			return idErr
		}
		product.ProductID = productID
		product.Active = true
		store.state.products[productID.String()] = product
		return nil
	})
	return product, err
}

func (store *stubStore) UpdateProduct(ctx context.Context, productID ProductID, update ProductUpdate) error {
	return store.locked(func() error {
		product, ok := store.state.products[productID.String()]
		if !ok {
			return ErrProductUnavailable
		}
		if update.Name != nil {
			product.Name = *update.Name
		}
		if update.PointsRequired != nil {
			product.PointsRequired = *update.PointsRequired
		}
		if update.StockQuantity != nil {
			product.StockQuantity = *update.StockQuantity
		}
		if update.Active != nil {
			product.Active = *update.Active
		}
		store.state.products[productID.String()] = product
		return nil
	})
}

// mustWallet fetches a wallet directly from stub state.
func (store *stubStore) mustWallet(test *testing.T, customerID CustomerID) Wallet {
	test.Helper()
	wallet, err := store.Wallet(context.Background(), customerID)
	if err != nil {
		test.Fatalf("wallet lookup: %v", err)
	}
	return wallet
}

// seedCustomer inserts a customer with a wallet holding the given points.
func (store *stubStore) seedCustomer(test *testing.T, mobile string, available Points) Customer {
	test.Helper()
	customer, err := store.GetOrCreateCustomer(context.Background(), mustMobile(test, mobile))
	if err != nil {
		test.Fatalf("seed customer: %v", err)
	}
	if available > 0 {
		if err := store.CreditWallet(context.Background(), customer.CustomerID, available); err != nil {
			test.Fatalf("seed wallet: %v", err)
		}
	}
	return customer
}

// seedProduct inserts an active product.
func (store *stubStore) seedProduct(test *testing.T, name string, pointsRequired Points, stock int64) Product {
	test.Helper()
	product, err := store.CreateProduct(context.Background(), Product{
		Name:           name,
		PointsRequired: pointsRequired,
		StockQuantity:  stock,
	})
	if err != nil {
		test.Fatalf("seed product: %v", err)
	}
	return product
}

type stubSettings map[string]string

func (settings stubSettings) Setting(_ context.Context, key string) (string, error) {
	value, ok := settings[key]
	if !ok {
		return "", ErrInvalidSetting
	}
	return value, nil
}

func defaultStubSettings() stubSettings {
	return stubSettings{
		SettingMinPurchaseAmount:      "100",
		SettingRedemptionThreshold:    "5",
		SettingFuelDiscountPercentage: "10",
	}
}

type recorderNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (notifier *recorderNotifier) Notify(_ context.Context, _ CustomerID, message string, _ string) {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	notifier.messages = append(notifier.messages, message)
}

func mustMobile(test *testing.T, raw string) Mobile {
	test.Helper()
	mobile, err := NewMobile(raw)
	if err != nil {
		test.Fatalf("mobile %q: %v", raw, err)
	}
	return mobile
}

func mustBillNumber(test *testing.T, raw string) BillNumber {
	test.Helper()
	billNumber, err := NewBillNumber(raw)
	if err != nil {
		test.Fatalf("bill number %q: %v", raw, err)
	}
	return billNumber
}

func mustFuelType(test *testing.T, raw string) FuelType {
	test.Helper()
	fuelType, err := NewFuelType(raw)
	if err != nil {
		test.Fatalf("fuel type %q: %v", raw, err)
	}
	return fuelType
}

func mustActorID(test *testing.T, raw string) ActorID {
	test.Helper()
	actorID, err := NewActorID(raw)
	if err != nil {
		test.Fatalf("actor id %q: %v", raw, err)
	}
	return actorID
}

func mustNewService(test *testing.T, store Store, settings Settings, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, settings, func() int64 { return 1700000000 }, options...)
	if err != nil {
		test.Fatalf("service init: %v", err)
	}
	return service
}

func mustBillInput(test *testing.T, billNo string, mobile string, fuelType string, amount float64, fuelDensity *float64) BillInput {
	test.Helper()
	input, err := NewBillInput(
		mustBillNumber(test, billNo),
		mustMobile(test, mobile),
		mustFuelType(test, fuelType),
		10,
		amount,
		fuelDensity,
		mustActorID(test, "staff-1"),
	)
	if err != nil {
		test.Fatalf("bill input: %v", err)
	}
	return input
}
