package translator

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/labels"

	"github.com/litmuschaos/chaos-advisor/pkg/cerrors"
	"github.com/litmuschaos/chaos-advisor/pkg/types"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func intentValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// report fields by their json keys, e.g. target_selector.namespace
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks the shape of an intent, the first offending field is reported
func Validate(intent types.ExperimentIntent) error {
	if err := intentValidator().Struct(intent); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
			return cerrors.Validation{Reason: err.Error()}
		}
		fe := fieldErrs[0]
		return cerrors.Validation{Field: fieldPath(fe.Namespace()), Reason: reasonFor(fe)}
	}
	if _, err := labels.Parse(intent.TargetSelector.LabelSelector); err != nil {
		return cerrors.Validation{Field: "target_selector.label_selector", Reason: "is not a valid label selector"}
	}
	return nil
}

// fieldPath drops the root struct name, ExperimentIntent.parameters.duration -> parameters.duration
func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte", "lte":
		return "must be within [0, 1]"
	default:
		return "failed the '" + fe.Tag() + "' check"
	}
}
