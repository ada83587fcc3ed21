package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"license-management-service/pkg/licensing"
)

// newValidator はリクエストボディ検証用のvalidatorを生成する。
// カスタムルールを登録できない場合は起動時にpanicする。
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidations(v); err != nil {
		panic(fmt.Sprintf("registering validations: %v", err))
	}
	return v
}

// registerValidations はカスタムルールを登録する。
// エラーメッセージにはjsonタグのフィールド名を使う。
func registerValidations(v *validator.Validate) error {
	if err := v.RegisterValidation("hwid", isHardwareIdentifier); err != nil {
		return fmt.Errorf("hwid: %w", err)
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return nil
}

// isHardwareIdentifier はチェックサムの正しいハードウェア識別子か判定する。
func isHardwareIdentifier(fl validator.FieldLevel) bool {
	return licensing.IsHardwareIdentifierCheckSumValid(fl.Field().String())
}

// validationMessage は検証エラーを利用者向けの1つのメッセージにまとめる。
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return strings.Join(msgs, "; ")
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "excludes":
		return fmt.Sprintf("%s must not contain '%s'", field, fe.Param())
	case "hwid":
		return fmt.Sprintf("%s must be a valid hardware identifier", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
