package comparator

import (
	"github.com/litmuschaos/chaos-advisor/pkg/cerrors"
)

// CompareFloat reports whether the first operand satisfies the criteria against the second one
// it check for the >=, >, <=, <, ==, != operators
func (model Model) CompareFloat() (bool, error) {
	switch model.operator {
	case ">=":
		return model.a >= model.b, nil
	case "<=":
		return model.a <= model.b, nil
	case ">":
		return model.a > model.b, nil
	case "<":
		return model.a < model.b, nil
	case "==":
		return model.a == model.b, nil
	case "!=":
		return model.a != model.b, nil
	default:
		return false, cerrors.Generic{Phase: "Comparator", Reason: "criteria '" + model.operator + "' is not supported"}
	}
}
