package rules

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Matches reports whether trigger data satisfies a rule's trigger config.
// Recognized predicates:
//
//	threshold         data[field] >= threshold, field defaults to "value"
//	classification    data.classification equals it exactly
//	spike_percentage  data.increase_percentage >= spike_percentage
//
// Every present predicate must hold. A config with none of them matches all data.
func Matches(cfg, data map[string]interface{}) bool {
	if threshold, present := number(cfg["threshold"]); present {
		field, _ := cfg["field"].(string)
		if field == "" {
			field = "value"
		}
		value, found := number(data[field])
		if !found || value < threshold {
			return false
		}
	}

	if want, isString := cfg["classification"].(string); isString && want != "" {
		got, _ := data["classification"].(string)
		if got != want {
			return false
		}
	}

	if spike, present := number(cfg["spike_percentage"]); present {
		increase, found := number(data["increase_percentage"])
		if !found || increase < spike {
			return false
		}
	}

	return true
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
