package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/vigil-exam/vigil/internal/model"
)

// trans translates validation errors into English messages.
var trans ut.Translator

// Setup configures Gin's binding engine: JSON tag names in error messages,
// English translations, and the domain rules below. Call once at startup.
func Setup() {
	v, ok := binding.Validator.Engine().(*govalidator.Validate)
	if !ok {
		return
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// violationtype restricts violation reports to the recognized set so
	// arbitrary client strings never reach the ledger or the queue.
	v.RegisterValidation("violationtype", func(fl govalidator.FieldLevel) bool {
		return model.ViolationType(fl.Field().String()).Known()
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ = uni.GetTranslator("en")
	en_translations.RegisterDefaultTranslations(v, trans)

	v.RegisterTranslation("violationtype", trans,
		func(ut ut.Translator) error {
			return ut.Add("violationtype", "{0} is not a recognized violation type", true)
		},
		func(ut ut.Translator, fe govalidator.FieldError) string {
			t, _ := ut.T("violationtype", fe.Field())
			return t
		})
}

// TranslateErrors converts a binding error into a field name to message map.
// Non-validation errors (malformed JSON and the like) collapse to a single
// "detail" entry.
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(trans)
		}
		return fields
	}

	fields["detail"] = err.Error()
	return fields
}

// Bind binds and validates the JSON request body into dst. A nil return
// means success; otherwise the map holds translated field errors.
func Bind(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}
