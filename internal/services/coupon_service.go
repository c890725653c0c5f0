package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	domain "github.com/libre-rico/api/internal/domain"
)

// ErrCouponNotFound indicates the supplied code is not on the whitelist.
var ErrCouponNotFound = errors.New("coupon: not found")

// couponWhitelist enumerates the accepted codes. Codes are matched after
// trimming whitespace and uppercasing.
var couponWhitelist = map[string]domain.Coupon{
	"LIBREENVIO": {
		Code:  "LIBREENVIO",
		Type:  domain.CouponFreeShipping,
		Label: "free shipping",
	},
	"ENVIOGRATIS": {
		Code:  "ENVIOGRATIS",
		Type:  domain.CouponFreeShipping,
		Label: "free shipping",
	},
	"DESCUENTO10": {
		Code:  "DESCUENTO10",
		Type:  domain.CouponPercent,
		Value: 10,
		Label: "10% off the subtotal",
	},
	"MENOS2000": {
		Code:  "MENOS2000",
		Type:  domain.CouponFixed,
		Value: 2000,
		Label: "2000 off the subtotal",
	},
}

type couponService struct{}

// NewCouponService constructs the whitelist-backed coupon service.
func NewCouponService() CouponService {
	return &couponService{}
}

func (s *couponService) Resolve(_ context.Context, code string) (domain.Coupon, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return domain.Coupon{}, fmt.Errorf("%w: empty code", ErrCouponNotFound)
	}
	coupon, ok := couponWhitelist[normalized]
	if !ok {
		return domain.Coupon{}, fmt.Errorf("%w: %s", ErrCouponNotFound, normalized)
	}
	return coupon, nil
}

func (s *couponService) List(_ context.Context) []domain.Coupon {
	coupons := make([]domain.Coupon, 0, len(couponWhitelist))
	for _, coupon := range couponWhitelist {
		coupons = append(coupons, coupon)
	}
	sort.Slice(coupons, func(i, j int) bool {
		return coupons[i].Code < coupons[j].Code
	})
	return coupons
}

// ApplyCoupon computes the discount and shipping fee that result from the
// coupon. The discount never exceeds the subtotal.
func ApplyCoupon(coupon domain.Coupon, subtotal, shippingFee int64) (discount, fee int64) {
	fee = shippingFee
	switch coupon.Type {
	case domain.CouponFreeShipping:
		fee = 0
	case domain.CouponPercent:
		discount = subtotal * coupon.Value / 100
	case domain.CouponFixed:
		discount = coupon.Value
	}
	if discount > subtotal {
		discount = subtotal
	}
	return discount, fee
}
