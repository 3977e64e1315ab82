package validation

import (
	"testing"

	"github.com/google/uuid"
)

func TestPlaceOrderRequestRules(t *testing.T) {
	v := New()

	valid := PlaceOrderRequest{
		BasketID:     uuid.New().String(),
		Quantity:     2,
		PickupMethod: "click_collect",
	}

	tests := []struct {
		name    string
		mutate  func(r *PlaceOrderRequest)
		wantErr bool
	}{
		{name: "valid click and collect", mutate: func(r *PlaceOrderRequest) {}, wantErr: false},
		{name: "valid delivery", mutate: func(r *PlaceOrderRequest) { r.PickupMethod = "delivery" }, wantErr: false},
		{name: "missing basket id", mutate: func(r *PlaceOrderRequest) { r.BasketID = "" }, wantErr: true},
		{name: "malformed basket id", mutate: func(r *PlaceOrderRequest) { r.BasketID = "abc" }, wantErr: true},
		{name: "zero quantity", mutate: func(r *PlaceOrderRequest) { r.Quantity = 0 }, wantErr: true},
		{name: "negative quantity", mutate: func(r *PlaceOrderRequest) { r.Quantity = -1 }, wantErr: true},
		{name: "unknown pickup method", mutate: func(r *PlaceOrderRequest) { r.PickupMethod = "teleport" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)

			err := v.Struct(req)
			if tt.wantErr && err == nil {
				t.Fatalf("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCreateBasketRequestRules(t *testing.T) {
	v := New()

	valid := CreateBasketRequest{
		Title:           "Panier du soir",
		Category:        "alimentaire",
		OriginalPrice:   15.0,
		DiscountedPrice: 5.0,
		Stock:           10,
	}

	tests := []struct {
		name    string
		mutate  func(r *CreateBasketRequest)
		wantErr bool
	}{
		{name: "valid", mutate: func(r *CreateBasketRequest) {}, wantErr: false},
		{name: "accented category", mutate: func(r *CreateBasketRequest) { r.Category = "hygiène" }, wantErr: false},
		{name: "free basket", mutate: func(r *CreateBasketRequest) { r.DiscountedPrice = 0 }, wantErr: false},
		{name: "missing title", mutate: func(r *CreateBasketRequest) { r.Title = "" }, wantErr: true},
		{name: "unknown category", mutate: func(r *CreateBasketRequest) { r.Category = "luxe" }, wantErr: true},
		{name: "negative stock", mutate: func(r *CreateBasketRequest) { r.Stock = -1 }, wantErr: true},
		{name: "negative price", mutate: func(r *CreateBasketRequest) { r.DiscountedPrice = -0.5 }, wantErr: true},
		{name: "discount above original", mutate: func(r *CreateBasketRequest) { r.DiscountedPrice = 20.0 }, wantErr: true},
		{name: "float rounding at boundary", mutate: func(r *CreateBasketRequest) { r.DiscountedPrice = 15.0; r.OriginalPrice = 15.0 }, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)

			err := v.Struct(req)
			if tt.wantErr && err == nil {
				t.Fatalf("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
