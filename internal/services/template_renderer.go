package services

import (
	"fmt"
	"regexp"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// RenderText substitutes {{key}} placeholders in a notification title or
// body. Unknown keys are left as written so a bad job is visible on the
// device instead of silently blank.
func RenderText(text string, vars map[string]any) string {
	if text == "" || len(vars) == 0 {
		return text
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := vars[key]
		if !ok || value == nil {
			return match
		}
		return fmt.Sprint(value)
	})
}
