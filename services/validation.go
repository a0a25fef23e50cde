package services

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	tagValidator     *validator.Validate
	tagValidatorOnce sync.Once
	oneOfParam       = regexp.MustCompile(`'[^']*'|\S+`)
)

// RegisterValidations teaches v the json field names and the date and clock
// tags used on request inputs. Gin's binding engine and the service layer
// share the same rules through it.
func RegisterValidations(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	custom := map[string]func(string) bool{
		"ymd": isCalendarDate,
		"anydate": func(s string) bool {
			_, err := parseDate(s)
			return err == nil
		},
		"hhmm": isClockTime,
	}
	for tag, ok := range custom {
		err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "" || ok(s)
		})
		if err != nil {
			return fmt.Errorf("failed to register %q validation: %w", tag, err)
		}
	}
	return nil
}

func structValidator() *validator.Validate {
	tagValidatorOnce.Do(func() {
		v := validator.New()
		v.SetTagName("binding")
		if err := RegisterValidations(v); err != nil {
			panic(err)
		}
		tagValidator = v
	})
	return tagValidator
}

// checkTags runs the binding rules of in and collects one message per failure.
func (v *validationErrors) checkTags(in any) {
	if err := structValidator().Struct(in); err != nil {
		*v = append(*v, ValidationMessages(err)...)
	}
}

// ValidationMessages turns validator failures into readable messages keyed by
// json path, e.g. "lineItems[0].priority must be one of Rush, Normal".
func ValidationMessages(err error) []string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fieldMessage(fe))
	}
	return messages
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	isList := fe.Kind() == reflect.Slice || fe.Kind() == reflect.Array

	switch fe.Tag() {
	case "required":
		if isList {
			return field + " is required and cannot be empty"
		}
		return field + " is required"
	case "min":
		if isList {
			return field + " is required and cannot be empty"
		}
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		allowed := oneOfParam.FindAllString(fe.Param(), -1)
		for i := range allowed {
			allowed[i] = strings.Trim(allowed[i], "'")
		}
		return fmt.Sprintf("%s must be one of %s", field, strings.Join(allowed, ", "))
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "ymd":
		return field + " must be a date in YYYY-MM-DD format"
	case "anydate":
		return field + " must be a valid date"
	case "hhmm":
		return field + " must be in HH:mm format"
	default:
		return fmt.Sprintf("%s failed the %s rule", field, fe.Tag())
	}
}
