// Package validation содержит типы запросов API и правила их проверки.
package validation

// RegisterRequest содержит данные регистрации студента.
type RegisterRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6"`
	FullName   string `json:"full_name" validate:"required"`
	University string `json:"university"`
	Phone      string `json:"phone" validate:"required"`
}

// LoginRequest содержит учётные данные для входа.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// PlaceOrderRequest содержит параметры оформления заказа.
type PlaceOrderRequest struct {
	BasketID     string `json:"basket_id" validate:"required,uuid"`
	Quantity     int    `json:"quantity" validate:"required,min=1"`
	PickupMethod string `json:"pickup_method" validate:"required,oneof=click_collect delivery"`
}

// CreateBasketRequest содержит параметры нового панье. Цены в евро.
type CreateBasketRequest struct {
	Title           string  `json:"title" validate:"required"`
	Description     string  `json:"description"`
	Category        string  `json:"category" validate:"required,oneof=alimentaire hygiène fournitures mixte"`
	OriginalPrice   float64 `json:"original_price" validate:"gte=0"`
	DiscountedPrice float64 `json:"discounted_price" validate:"gte=0"`
	Stock           int     `json:"stock" validate:"gte=0"`
	StoreName       string  `json:"store_name"`
	StoreLocation   string  `json:"store_location"`
	AvailableUntil  string  `json:"available_until"`
	CO2Saved        float64 `json:"co2_saved" validate:"gte=0"`
	FoodSaved       float64 `json:"food_saved" validate:"gte=0"`
}
