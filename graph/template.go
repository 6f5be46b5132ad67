package graph

import (
	"encoding/json"
	"regexp"

	"github.com/tidwall/gjson"
)

var templateRefPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// buildTemplateScope assembles the value Template and State substitution
// walk dotted paths against: upstream nodes addressed by label, plus a
// "state" entry holding the run's namespaced State-executor memory.
//
// The scope is marshaled once to JSON so a reference's dotted path can be
// resolved with a single gjson.GetBytes call regardless of whether it
// names a bare label (`{{input}}`) or reaches into nested JSON
// (`{{input.json.items.0.name}}`, `{{state.profile.name}}`).
func buildTemplateScope(inputsByLabel map[string]NodePayload, state map[string]any) ([]byte, error) {
	scope := make(map[string]any, len(inputsByLabel)+1)
	for label, payload := range inputsByLabel {
		if payload.JSON != nil {
			scope[label] = map[string]any{"text": payload.Text, "json": payload.JSON}
		} else {
			scope[label] = payload.Text
		}
	}
	scope["state"] = state
	return json.Marshal(scope)
}

// renderTemplate substitutes every {{name.path}} reference in tmpl against
// scopeJSON. A reference that does not resolve is replaced with the empty
// string — never left as literal {{...}}, and never fatal — per the
// disposition of the node's open question around undocumented template
// syntax.
func renderTemplate(tmpl string, scopeJSON []byte) string {
	return templateRefPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		ref := templateRefPattern.FindStringSubmatch(match)[1]
		result := gjson.GetBytes(scopeJSON, ref)
		if !result.Exists() {
			return ""
		}
		return result.String()
	})
}
