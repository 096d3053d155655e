package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/petropoint/rewards/internal/metrics"
	"github.com/petropoint/rewards/pkg/rewards"
)

type httpHandler struct {
	service *rewards.Service
	logger  *zap.Logger
}

type createBillRequest struct {
	BillNo      string   `json:"bill_no"`
	Mobile      string   `json:"mobile"`
	FuelType    string   `json:"fuel_type"`
	Quantity    float64  `json:"quantity"`
	Amount      float64  `json:"amount"`
	FuelDensity *float64 `json:"fuel_density"`
}

func (handler *httpHandler) handleCreateBill(ctx *gin.Context) {
	var request createBillRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	billNumber, err := rewards.NewBillNumber(request.BillNo)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	mobile, err := rewards.NewMobile(request.Mobile)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	fuelType, err := rewards.NewFuelType(request.FuelType)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	actorID, err := rewards.NewActorID(currentIdentity(ctx).UserID)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	input, err := rewards.NewBillInput(billNumber, mobile, fuelType, request.Quantity, request.Amount, request.FuelDensity, actorID)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	receipt, err := handler.service.IngestBill(ctx.Request.Context(), input)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	metrics.BillsIngestedTotal.Inc()
	metrics.PointsIssuedTotal.Add(float64(receipt.PointsEarned))
	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Bill created successfully",
		"data": gin.H{
			"bill_no":       receipt.BillNumber.String(),
			"points_earned": int64(receipt.PointsEarned),
			"total_points":  int64(receipt.AvailablePoints),
		},
	})
}

func (handler *httpHandler) handleBillHistory(ctx *gin.Context) {
	mobile, err := rewards.NewMobile(ctx.Param("mobile"))
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))
	billPage, err := handler.service.BillHistory(ctx.Request.Context(), mobile, page, limit)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	bills := make([]gin.H, 0, len(billPage.Bills))
	for _, bill := range billPage.Bills {
		bills = append(bills, billJSON(bill))
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    bills,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": billPage.Total,
		},
	})
}

func (handler *httpHandler) handleWallet(ctx *gin.Context) {
	mobile, err := rewards.NewMobile(ctx.Param("mobile"))
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	wallet, err := handler.service.Balance(ctx.Request.Context(), mobile)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"total_points":     int64(wallet.TotalPoints),
			"redeemed_points":  int64(wallet.RedeemedPoints),
			"available_points": int64(wallet.AvailablePoints),
		},
	})
}

type redeemFuelRequest struct {
	Mobile     string  `json:"mobile"`
	BillNo     string  `json:"bill_no"`
	FuelAmount float64 `json:"fuel_amount"`
}

func (handler *httpHandler) handleRedeemFuel(ctx *gin.Context) {
	var request redeemFuelRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	mobile, err := rewards.NewMobile(request.Mobile)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	billNumber, err := rewards.NewBillNumber(request.BillNo)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	actorID, err := rewards.NewActorID(currentIdentity(ctx).UserID)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	input, err := rewards.NewFuelRedemptionInput(mobile, billNumber, request.FuelAmount, actorID)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	receipt, err := handler.service.RedeemForFuel(ctx.Request.Context(), input)
	if err != nil {
		metrics.RedemptionsTotal.WithLabelValues(string(rewards.RedemptionFuelDiscount), "error").Inc()
		handler.writeError(ctx, err)
		return
	}
	metrics.RedemptionsTotal.WithLabelValues(string(rewards.RedemptionFuelDiscount), "ok").Inc()
	metrics.PointsRedeemedTotal.Add(float64(receipt.PointsUsed))
	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Points redeemed successfully",
		"data": gin.H{
			"points_used":      int64(receipt.PointsUsed),
			"discount_amount":  receipt.DiscountAmount,
			"remaining_points": int64(receipt.RemainingPoints),
		},
	})
}

type redeemProductRequest struct {
	ProductID string `json:"product_id"`
}

func (handler *httpHandler) handleRedeemProduct(ctx *gin.Context) {
	var request redeemProductRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	productID, err := rewards.NewProductID(request.ProductID)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	customerID, err := rewards.NewCustomerID(currentIdentity(ctx).UserID)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	receipt, err := handler.service.RedeemForProduct(ctx.Request.Context(), customerID, productID)
	if err != nil {
		metrics.RedemptionsTotal.WithLabelValues(string(rewards.RedemptionProduct), "error").Inc()
		handler.writeError(ctx, err)
		return
	}
	metrics.RedemptionsTotal.WithLabelValues(string(rewards.RedemptionProduct), "ok").Inc()
	metrics.PointsRedeemedTotal.Add(float64(receipt.PointsUsed))
	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Product redeemed successfully",
		"data": gin.H{
			"product_name":     receipt.ProductName,
			"points_used":      int64(receipt.PointsUsed),
			"remaining_points": int64(receipt.RemainingPoints),
		},
	})
}

func (handler *httpHandler) handleRedemptionHistory(ctx *gin.Context) {
	customerID, err := rewards.NewCustomerID(ctx.Param("customer_id"))
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	redemptions, err := handler.service.RedemptionHistory(ctx.Request.Context(), customerID)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	entries := make([]gin.H, 0, len(redemptions))
	for _, redemption := range redemptions {
		entries = append(entries, redemptionJSON(redemption))
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "data": entries})
}

func (handler *httpHandler) handleListProducts(ctx *gin.Context) {
	activeOnly := ctx.DefaultQuery("active", "true") == "true"
	products, err := handler.service.Products(ctx.Request.Context(), ctx.Query("category"), activeOnly)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	entries := make([]gin.H, 0, len(products))
	for _, product := range products {
		entries = append(entries, productJSON(product))
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "data": entries})
}

type createProductRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Category       string `json:"category"`
	PointsRequired int64  `json:"points_required"`
	StockQuantity  int64  `json:"stock_quantity"`
	ImageURL       string `json:"image_url"`
}

func (handler *httpHandler) handleCreateProduct(ctx *gin.Context) {
	var request createProductRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	product, err := handler.service.AddProduct(ctx.Request.Context(), rewards.Product{
		Name:           request.Name,
		Description:    request.Description,
		Category:       request.Category,
		PointsRequired: rewards.Points(request.PointsRequired),
		StockQuantity:  request.StockQuantity,
		ImageURL:       request.ImageURL,
	})
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Product created successfully",
		"data":    gin.H{"id": product.ProductID.String()},
	})
}

type updateProductRequest struct {
	Name           *string `json:"name"`
	Description    *string `json:"description"`
	Category       *string `json:"category"`
	PointsRequired *int64  `json:"points_required"`
	StockQuantity  *int64  `json:"stock_quantity"`
	ImageURL       *string `json:"image_url"`
	IsActive       *bool   `json:"is_active"`
}

func (handler *httpHandler) handleUpdateProduct(ctx *gin.Context) {
	productID, err := rewards.NewProductID(ctx.Param("id"))
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	var request updateProductRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	update := rewards.ProductUpdate{
		Name:        request.Name,
		Description: request.Description,
		Category:    request.Category,
		ImageURL:    request.ImageURL,
		Active:      request.IsActive,
	}
	if request.PointsRequired != nil {
		points := rewards.Points(*request.PointsRequired)
		update.PointsRequired = &points
	}
	if request.StockQuantity != nil {
		update.StockQuantity = request.StockQuantity
	}
	if err := handler.service.UpdateProduct(ctx.Request.Context(), productID, update); err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Product updated successfully"})
}

// writeError maps domain errors onto HTTP statuses: validation 400, missing
// references 404, duplicate bill 409, business-rule rejections 422, lock
// contention 503, everything else 500.
func (handler *httpHandler) writeError(ctx *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, rewards.ErrCustomerNotFound), errors.Is(err, rewards.ErrProductUnavailable):
		status = http.StatusNotFound
	case errors.Is(err, rewards.ErrDuplicateBillNumber):
		status = http.StatusConflict
	case errors.Is(err, rewards.ErrInsufficientBalance),
		errors.Is(err, rewards.ErrBelowRedemptionThreshold),
		errors.Is(err, rewards.ErrOutOfStock):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, rewards.ErrBelowMinimumPurchase),
		errors.Is(err, rewards.ErrInvalidMobile),
		errors.Is(err, rewards.ErrInvalidBillNumber),
		errors.Is(err, rewards.ErrInvalidFuelType),
		errors.Is(err, rewards.ErrInvalidCustomerID),
		errors.Is(err, rewards.ErrInvalidProductID),
		errors.Is(err, rewards.ErrInvalidActorID),
		errors.Is(err, rewards.ErrInvalidAmount),
		errors.Is(err, rewards.ErrInvalidQuantity),
		errors.Is(err, rewards.ErrInvalidPoints):
		status = http.StatusBadRequest
	case errors.Is(err, rewards.ErrBusy):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		handler.logger.Error("request failed", zap.Error(err))
		ctx.JSON(status, gin.H{"error": "internal error"})
		return
	}
	ctx.JSON(status, gin.H{"error": err.Error()})
}

func billJSON(bill rewards.Bill) gin.H {
	entry := gin.H{
		"bill_no":       bill.BillNumber.String(),
		"customer_id":   bill.CustomerID.String(),
		"mobile":        bill.Mobile.String(),
		"fuel_type":     bill.FuelType.String(),
		"quantity":      bill.Quantity,
		"amount":        bill.Amount,
		"points_earned": int64(bill.PointsEarned),
		"created_by":    bill.CreatedBy.String(),
		"created_at":    bill.CreatedUnixUTC,
	}
	if bill.FuelDensity != nil {
		entry["fuel_density"] = *bill.FuelDensity
	}
	return entry
}

func redemptionJSON(redemption rewards.Redemption) gin.H {
	entry := gin.H{
		"redemption_id":   redemption.RedemptionID,
		"customer_id":     redemption.CustomerID.String(),
		"redemption_type": string(redemption.Kind),
		"points_used":     int64(redemption.PointsUsed),
		"created_by":      redemption.CreatedBy.String(),
		"created_at":      redemption.CreatedUnixUTC,
	}
	if redemption.Kind == rewards.RedemptionFuelDiscount {
		entry["discount_amount"] = redemption.DiscountAmount
		if redemption.BillNumber != nil {
			entry["bill_no"] = redemption.BillNumber.String()
		}
	}
	if redemption.ProductID != nil {
		entry["product_id"] = redemption.ProductID.String()
		entry["product_name"] = redemption.ProductName
	}
	return entry
}

func productJSON(product rewards.Product) gin.H {
	return gin.H{
		"id":              product.ProductID.String(),
		"name":            product.Name,
		"description":     product.Description,
		"category":        product.Category,
		"points_required": int64(product.PointsRequired),
		"stock_quantity":  product.StockQuantity,
		"image_url":       product.ImageURL,
		"is_active":       product.Active,
	}
}
