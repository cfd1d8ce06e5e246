package util

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// RegisterValidators 向 gin 的校验器注册自定义规则
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		// notblank: 去掉空白后不能为空
		_ = v.RegisterValidation("notblank", validators.NotBlank)
	}
}
