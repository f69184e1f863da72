// Package abort decides whether a running experiment has crossed its safety threshold.
// Evaluation fails open: a rule that cannot be evaluated never aborts a run.
package abort

import (
	"fmt"

	"github.com/litmuschaos/chaos-advisor/pkg/log"
	"github.com/litmuschaos/chaos-advisor/pkg/probe/comparator"
	"github.com/litmuschaos/chaos-advisor/pkg/types"
)

// DefaultOperator applies when the rule leaves the operator out
const DefaultOperator = ">"

var operators = map[string]bool{">": true, ">=": true, "<": true, "<=": true}

// ShouldAbort reports whether the metrics cross the rule's threshold
func ShouldAbort(metrics map[string]float64, rule *types.AbortRule) bool {
	if rule == nil || rule.Metric == "" {
		return false
	}
	value, ok := metrics[rule.Metric]
	if !ok {
		return false
	}
	operator := operatorOf(rule)
	if !operators[operator] {
		log.Warnf("[Abort]: Ignoring the abort threshold on %v, operator '%v' is not supported", rule.Metric, operator)
		return false
	}

	crossed, err := comparator.FirstValue(value).SecondValue(rule.Value).Criteria(operator).CompareFloat()
	if err != nil {
		log.Warnf("[Abort]: Unable to evaluate the abort threshold, err: %v", err)
		return false
	}
	return crossed
}

// Reason describes the crossed threshold for the final report
func Reason(metrics map[string]float64, rule *types.AbortRule) string {
	if rule == nil {
		return ""
	}
	return fmt.Sprintf("Threshold exceeded: %s %s %v (observed %v)", rule.Metric, operatorOf(rule), rule.Value, metrics[rule.Metric])
}

func operatorOf(rule *types.AbortRule) string {
	if rule.Operator == "" {
		return DefaultOperator
	}
	return rule.Operator
}
