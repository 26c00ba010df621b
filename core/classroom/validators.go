package classroom

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/dtlearning/learninghub/core"
	"github.com/dtlearning/learninghub/core/coursekey"
)

var (
	courseKeyTag  = "coursekey"
	courseKeyText = "invalid course key"
)

// InitValidators registers the classroom-specific validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(courseKeyTag, courseKeyValidation)
	core.RegisterCustomTranslation(validate, translator, courseKeyTag, courseKeyText)
}

// courseKeyValidation requires the field to parse as a course run reference.
func courseKeyValidation(fl validator.FieldLevel) bool {
	_, err := coursekey.Parse(fl.Field().String())
	return err == nil
}
