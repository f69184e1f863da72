package probe

import (
	"regexp"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/selection"

	"github.com/litmuschaos/chaos-advisor/pkg/log"
)

var invalidLabelChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// labelName maps a kubernetes label key onto a prometheus label name, app.kubernetes.io/name -> app_kubernetes_io_name
func labelName(key string) string {
	return invalidLabelChars.ReplaceAllString(key, "_")
}

// Matchers renders the namespace and label selector of a target as PromQL label matchers
func Matchers(namespace, labelSelector string) string {
	matchers := []string{`namespace=` + strconv.Quote(namespace)}

	selector, err := labels.Parse(labelSelector)
	if err != nil {
		log.Warnf("[Probe]: Ignoring the invalid label selector %q, err: %v", labelSelector, err)
		return strings.Join(matchers, ",")
	}
	requirements, _ := selector.Requirements()
	for _, r := range requirements {
		name := labelName(r.Key())
		values := r.Values().List()
		switch r.Operator() {
		case selection.Equals, selection.DoubleEquals:
			matchers = append(matchers, name+`=`+strconv.Quote(values[0]))
		case selection.NotEquals:
			matchers = append(matchers, name+`!=`+strconv.Quote(values[0]))
		case selection.In:
			matchers = append(matchers, name+`=~`+strconv.Quote(alternation(values)))
		case selection.NotIn:
			matchers = append(matchers, name+`!~`+strconv.Quote(alternation(values)))
		case selection.Exists:
			matchers = append(matchers, name+`!=""`)
		case selection.DoesNotExist:
			matchers = append(matchers, name+`=""`)
		}
	}
	return strings.Join(matchers, ",")
}

func alternation(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, regexp.QuoteMeta(v))
	}
	return strings.Join(quoted, "|")
}
