package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var couponCodePattern = regexp.MustCompile(`^[A-Z0-9_-]{3,32}$`)

// NormalizeCouponCode trims and uppercases a user-entered code.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCouponCode reports whether a normalized code is well-formed.
func ValidCouponCode(code string) bool {
	return couponCodePattern.MatchString(code)
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("couponcode", func(fl validator.FieldLevel) bool {
		return ValidCouponCode(fl.Field().String())
	})
	return v
}

// validateStruct runs the domain tags and wraps failures in ErrValidation.
func validateStruct(v *validator.Validate, s interface{}) error {
	if err := v.Struct(s); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrValidation, strings.Join(fields, "; "))
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
