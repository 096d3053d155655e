package rewards

const (
	operationIngestBill    = "ingest_bill"
	operationRedeemFuel    = "redeem_fuel"
	operationRedeemProduct = "redeem_product"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	// Keys read from the Settings collaborator.
	SettingMinPurchaseAmount      = "min_purchase_amount"
	SettingRedemptionThreshold    = "redemption_threshold"
	SettingFuelDiscountPercentage = "fuel_discount_percentage"

	// Notification categories.
	NotificationPointsEarned = "points_earned"
	NotificationRedemption   = "redemption"
)

// Points policy parameters.
const (
	amountPerBasePoint   = 300.0
	petrolDensityMinimum = 0.75
	petrolQualityBonus   = 0.2
	dieselBonusSlab      = 500.0
	dieselBonusPoints    = 2
)
