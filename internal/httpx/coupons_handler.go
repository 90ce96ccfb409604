package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/catalog"
	"github.com/ariefcatur/go-order-fulfillment/internal/coupons"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

type CouponsHandler struct {
	Coupons *coupons.Evaluator
	Store   orders.Store
	Logger  *zap.Logger
}

type CreateCouponReq struct {
	Code                  string              `json:"code"`
	Description           string              `json:"description"`
	DiscountType          orders.DiscountType `json:"discount_type"`
	DiscountValue         decimal.Decimal     `json:"discount_value"`
	BuyQuantity           *int                `json:"buy_quantity,omitempty"`
	GetQuantity           *int                `json:"get_quantity,omitempty"`
	UsageLimit            *int                `json:"usage_limit,omitempty"`
	UsageLimitPerUser     *int                `json:"usage_limit_per_user,omitempty"`
	StartsAt              *time.Time          `json:"starts_at,omitempty"`
	ExpiresAt             *time.Time          `json:"expires_at,omitempty"`
	MinimumOrderAmount    decimal.NullDecimal `json:"minimum_order_amount"`
	MinimumQuantity       *int                `json:"minimum_quantity,omitempty"`
	AppliesToAllProducts  bool                `json:"applies_to_all_products"`
	ProductIDs            []string            `json:"product_ids,omitempty"`
	CategoryIDs           []string            `json:"category_ids,omitempty"`
	ExcludedProductIDs    []string            `json:"excluded_product_ids,omitempty"`
	ExcludedCategoryIDs   []string            `json:"excluded_category_ids,omitempty"`
	AppliesToAllCustomers bool                `json:"applies_to_all_customers"`
	CustomerIDs           []string            `json:"customer_ids,omitempty"`
	IsFirstOrderOnly      bool                `json:"is_first_order_only"`
	IsOneTimeUse          bool                `json:"is_one_time_use"`
	IsActive              bool                `json:"is_active"`
}

type ValidateCouponReq struct {
	Code       string               `json:"code"`
	OrderTotal *decimal.Decimal     `json:"order_total,omitempty"`
	Items      []ValidateCouponItem `json:"items,omitempty"`
}

type ValidateCouponItem struct {
	ProductID  string          `json:"product_id"`
	CategoryID *string         `json:"category_id,omitempty"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

type CouponResp struct {
	ID                string     `json:"id"`
	Code              string     `json:"code"`
	DiscountType      string     `json:"discount_type"`
	DiscountValue     string     `json:"discount_value"`
	CurrentUsageCount int        `json:"current_usage_count"`
	UsageLimit        *int       `json:"usage_limit,omitempty"`
	StartsAt          *time.Time `json:"starts_at,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	IsActive          bool       `json:"is_active"`
}

func toCouponResp(c *orders.Coupon) CouponResp {
	return CouponResp{
		ID:                c.ID,
		Code:              c.Code,
		DiscountType:      string(c.DiscountType),
		DiscountValue:     c.DiscountValue.String(),
		CurrentUsageCount: c.CurrentUsageCount,
		UsageLimit:        c.UsageLimit,
		StartsAt:          c.StartsAt,
		ExpiresAt:         c.ExpiresAt,
		IsActive:          c.IsActive,
	}
}

func (h *CouponsHandler) Register(r chi.Router) {
	r.Post("/coupons", h.create)
	r.Post("/coupons/validate", h.validate)
	r.Get("/categories/tree", h.categoryTree)
}

func (h *CouponsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateCouponReq
	if err := decode(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.Coupons.Create(ctx, orders.Coupon{
		Code:                  req.Code,
		Description:           req.Description,
		DiscountType:          req.DiscountType,
		DiscountValue:         req.DiscountValue,
		BuyQuantity:           req.BuyQuantity,
		GetQuantity:           req.GetQuantity,
		UsageLimit:            req.UsageLimit,
		UsageLimitPerUser:     req.UsageLimitPerUser,
		StartsAt:              req.StartsAt,
		ExpiresAt:             req.ExpiresAt,
		MinimumOrderAmount:    req.MinimumOrderAmount,
		MinimumQuantity:       req.MinimumQuantity,
		AppliesToAllProducts:  req.AppliesToAllProducts,
		ProductIDs:            req.ProductIDs,
		CategoryIDs:           req.CategoryIDs,
		ExcludedProductIDs:    req.ExcludedProductIDs,
		ExcludedCategoryIDs:   req.ExcludedCategoryIDs,
		AppliesToAllCustomers: req.AppliesToAllCustomers,
		CustomerIDs:           req.CustomerIDs,
		IsFirstOrderOnly:      req.IsFirstOrderOnly,
		IsOneTimeUse:          req.IsOneTimeUse,
		IsActive:              req.IsActive,
	})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCouponResp(c))
}

func (h *CouponsHandler) validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateCouponReq
	if err := decode(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	in := coupons.Input{UserID: actor(r), OrderTotal: req.OrderTotal}
	for _, it := range req.Items {
		in.Items = append(in.Items, coupons.LineItem{
			ProductID: it.ProductID, CategoryID: it.CategoryID, Quantity: it.Quantity, UnitPrice: it.UnitPrice,
		})
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, discount, err := h.Coupons.Check(ctx, req.Code, in)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":    true,
		"coupon":   toCouponResp(c),
		"discount": discount.StringFixed(2),
	})
}

func (h *CouponsHandler) categoryTree(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	tree, err := catalog.Load(ctx, h.Store)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tree.Views())
}
