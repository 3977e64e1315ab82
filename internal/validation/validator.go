package validation

import (
	"math"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New возвращает настроенный валидатор с зарегистрированными правилами.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	v.RegisterStructValidation(createBasketStructValidation, CreateBasketRequest{})

	return v
}

// createBasketStructValidation проверяет инвариант: цена со скидкой не
// превышает исходную. Сравнение в центах исключает погрешность float.
func createBasketStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateBasketRequest)

	discounted := int64(math.Round(req.DiscountedPrice * 100))
	original := int64(math.Round(req.OriginalPrice * 100))
	if discounted > original {
		sl.ReportError(req.DiscountedPrice, "discounted_price", "DiscountedPrice", "lte_original_price", "")
	}
}
