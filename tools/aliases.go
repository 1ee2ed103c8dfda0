package tools

import "strings"

// argumentAliases maps loose argument names emitted by oracles onto the
// canonical parameter names. Keys are lower-case.
var argumentAliases = map[string]string{
	"location":    "city",
	"source":      "origin_city",
	"origin":      "origin_city",
	"from":        "origin_city",
	"destination": "destination_city",
	"to":          "destination_city",
	"phone":       "phone_number",
	"number":      "phone_number",
	"date":        "departure_date",
}

// normalizeArguments rewrites alias keys to their canonical names. Keys are
// matched case-insensitively; an explicit canonical key wins over an alias.
func normalizeArguments(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))

	for k, v := range args {
		lk := strings.ToLower(k)
		if _, isAlias := argumentAliases[lk]; !isAlias {
			out[lk] = v
		}
	}

	for k, v := range args {
		canonical, ok := argumentAliases[strings.ToLower(k)]
		if !ok {
			continue
		}
		if _, exists := out[canonical]; !exists {
			out[canonical] = v
		}
	}

	return out
}

// aliasNormalizer gives a tool the shared alias table.
type aliasNormalizer struct{}

func (aliasNormalizer) NormalizeArguments(args map[string]any) map[string]any {
	return normalizeArguments(args)
}
