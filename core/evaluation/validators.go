package evaluation

import (
	"reflect"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/recqa/core"
)

var (
	classCodeTag  = "classcode"
	classCodeText = "invalid class code format (expected e.g. ps_070424_1000AM_Apple)"

	periodTag  = "period"
	periodText = "must be one of current_month, previous_month, last_3_months, last_6_months or all"

	channelTag  = "channel"
	channelText = "must be one of regular or trial"
)

// InitValidators registers the evaluation validation tags.
// Score fields validate as their number, and N/A counts as empty.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterCustomTypeFunc(scoreValue, Score{})

	_ = validate.RegisterValidation(classCodeTag, classCodeValidation)
	core.RegisterCustomTranslation(validate, translator, classCodeTag, classCodeText)

	_ = validate.RegisterValidation(periodTag, periodValidation)
	core.RegisterCustomTranslation(validate, translator, periodTag, periodText)

	_ = validate.RegisterValidation(channelTag, channelValidation)
	core.RegisterCustomTranslation(validate, translator, channelTag, channelText)
}

func scoreValue(field reflect.Value) interface{} {
	if s, ok := field.Interface().(Score); ok && s.Valid {
		return s.Float64
	}
	return nil
}

func classCodeValidation(fl validator.FieldLevel) bool {
	return ValidateClassCode(fl.Field().String())
}

func periodValidation(fl validator.FieldLevel) bool {
	_, err := ParsePeriod(fl.Field().String())
	return err == nil
}

func channelValidation(fl validator.FieldLevel) bool {
	_, err := ParseChannel(fl.Field().String())
	return err == nil
}
