package util

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"Parley/internal/service"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ValidateDTO 校验失败时返回包装了 ErrParamInvalid 的首个字段错误
func ValidateDTO(dto any) error {
	if err := validate.Struct(dto); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			firstError := vErrs[0]
			return fmt.Errorf("%w: 字段 [%s] 校验失败，规则 [%s]",
				service.ErrParamInvalid,
				firstError.Field(),
				firstError.Tag())
		}
		return err
	}
	return nil
}
