package service

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(fmt.Sprintf("register notblank validator: %v", err))
	}
	return v
}

// 与数据库列宽一致
const maxUserIDLength = 64

func validateUserIDs(ids ...string) error {
	for _, id := range ids {
		if err := validate.Var(id, fmt.Sprintf("required,notblank,max=%d", maxUserIDLength)); err != nil {
			return ErrInvalidUser
		}
	}
	return nil
}

// normalizeContent 去除首尾空白并校验长度（按字符计）
func normalizeContent(content string, maxLen int) (string, error) {
	if err := validate.Var(content, "required,notblank"); err != nil {
		return "", ErrEmptyContent
	}
	content = strings.TrimSpace(content)
	if maxLen > 0 {
		if err := validate.Var(content, fmt.Sprintf("max=%d", maxLen)); err != nil {
			return "", ErrContentTooLong
		}
	}
	return content, nil
}
