package actions

import (
	"encoding/json"
	"regexp"

	"github.com/tidwall/gjson"
)

var placeholder = regexp.MustCompile(`\{([A-Za-z0-9_\-]+(?:\.[A-Za-z0-9_\-]+)*)\}`)

// Render substitutes {key} placeholders with values from data. Dotted keys
// reach into nested objects. Placeholders with no value are left as written.
func Render(tmpl string, data map[string]interface{}) string {
	if tmpl == "" || !placeholder.MatchString(tmpl) {
		return tmpl
	}

	doc, err := json.Marshal(data)
	if err != nil {
		return tmpl
	}

	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := m[1 : len(m)-1]
		res := gjson.GetBytes(doc, key)
		if !res.Exists() || res.Type == gjson.Null {
			return m
		}
		return res.String()
	})
}
