// Package validation はリクエストDTOの入力検証を提供する。
// 検証エラーはJSONフィールド名をキーとするmodel.ValidationErrorに変換される。
package validation

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/locales/ja"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	ja_translations "github.com/go-playground/validator/v10/translations/ja"

	"github.com/hitoshi/familyhub/internal/model"
)

// カスタム検証タグ
const (
	notBlankTag = "notblank"
	passwordTag = "password"
)

var customMessages = map[string]string{
	notBlankTag: "{0}は空白のみにできません",
	passwordTag: "{0}は数字のみにできません",
}

// Validator はgo-playground/validatorのラッパー。
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

// New はカスタムタグと日本語メッセージを登録したValidatorを生成する。
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	locale := ja.New()
	uni := ut.New(locale, locale)
	trans, _ := uni.GetTranslator("ja")
	_ = ja_translations.RegisterDefaultTranslations(v, trans)

	// エラーのキーにはGoのフィールド名ではなくJSONタグ名を使う
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation(notBlankTag, notBlank)
	_ = v.RegisterValidation(passwordTag, passwordPolicy)

	for tag, text := range customMessages {
		registerMessage(v, trans, tag, text)
	}

	return &Validator{validate: v, trans: trans}
}

func registerMessage(v *validator.Validate, trans ut.Translator, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, text, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, err := ut.T(fe.Tag(), fe.Field())
			if err != nil {
				return fe.Error()
			}
			return msg
		},
	)
}

// Struct は構造体を検証する。
// 検証エラーがある場合は*model.ValidationErrorを返す。
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	verr := &model.ValidationError{}
	for _, fe := range fieldErrs {
		field := fe.Field()
		if field == "" {
			field = model.NonFieldErrorsKey
		}
		verr.Add(field, fe.Translate(v.trans))
	}
	return verr
}

func notBlank(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

// passwordPolicy は数字だけで構成されたパスワードを拒否する。長さはmin/maxタグで検証する。
func passwordPolicy(fl validator.FieldLevel) bool {
	str, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	for _, r := range str {
		if !unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
