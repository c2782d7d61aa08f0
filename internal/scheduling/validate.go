package scheduling

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("timeofday", func(fl validator.FieldLevel) bool {
		_, err := timeutil.ParseTimeOfDay(fl.Field().String())
		return err == nil
	})
	return v
}

// ValidateStruct runs the struct tags of s and translates failures into
// ValidationErrors.
func ValidateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	return translateValidationErrors(verrs)
}

func translateValidationErrors(verrs validator.ValidationErrors) ValidationErrors {
	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   fieldName(fe),
			Message: validationMessage(fe),
		})
	}
	return out
}

func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ToLower(ns)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "e164":
		return "must be an E.164 phone number"
	case "uuid":
		return "must be a valid UUID"
	case "timeofday":
		return "must be a time of day formatted HH:MM"
	case "datetime":
		return fmt.Sprintf("must be formatted as %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "numeric":
		return "must be a number"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// validateSpan checks a start time and length in minutes that must stay
// within one calendar day.
func validateSpan(startField string, start timeutil.TimeOfDay, durationField string, minutes int) ValidationErrors {
	var errs ValidationErrors
	if !start.Valid() || start == timeutil.MinutesPerDay {
		errs = append(errs, invalid(startField, "must be between 00:00 and 23:59")...)
	}
	if minutes <= 0 {
		errs = append(errs, invalid(durationField, "must be positive")...)
	} else if start.Valid() && int(start)+minutes > timeutil.MinutesPerDay {
		errs = append(errs, invalid(durationField, "must end by 24:00")...)
	}
	return errs
}

// validateRange checks a [start, end) pair of wall-clock times.
func validateRange(start, end timeutil.TimeOfDay) ValidationErrors {
	var errs ValidationErrors
	if !start.Valid() {
		errs = append(errs, invalid("start_time", "is not a valid time of day")...)
	}
	if !end.Valid() {
		errs = append(errs, invalid("end_time", "is not a valid time of day")...)
	}
	if len(errs) == 0 && start >= end {
		errs = append(errs, invalid("end_time", "must be after start_time")...)
	}
	return errs
}

func validateGranularity(minutes int) error {
	if minutes < 1 || minutes > timeutil.MinutesPerDay {
		return invalid("granularity", "must be between 1 and %d minutes", timeutil.MinutesPerDay)
	}
	return nil
}
