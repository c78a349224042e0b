package boundaries

import (
	"strings"
)

// sensitivePattern is one entry of the layered field-name table.
type sensitivePattern struct {
	substring string
	class     SensitivityClass
	prior     float64
}

// The table is layered by class; a field classifies into exactly one
// class, ties resolved by the highest prior.
var sensitivePatterns = []sensitivePattern{
	// Credentials outrank everything.
	{"password", ClassCredentials, 0.99},
	{"passwd", ClassCredentials, 0.98},
	{"secret", ClassCredentials, 0.95},
	{"api_key", ClassCredentials, 0.97},
	{"apikey", ClassCredentials, 0.97},
	{"private_key", ClassCredentials, 0.97},
	{"access_token", ClassCredentials, 0.96},
	{"refresh_token", ClassCredentials, 0.96},
	{"token", ClassCredentials, 0.80},
	{"salt", ClassCredentials, 0.85},
	{"hash", ClassCredentials, 0.60},

	// Financial.
	{"credit_card", ClassFinancial, 0.98},
	{"card_number", ClassFinancial, 0.98},
	{"cvv", ClassFinancial, 0.97},
	{"iban", ClassFinancial, 0.95},
	{"account_number", ClassFinancial, 0.90},
	{"routing_number", ClassFinancial, 0.92},
	{"salary", ClassFinancial, 0.85},
	{"balance", ClassFinancial, 0.70},
	{"payment", ClassFinancial, 0.65},

	// Health.
	{"diagnosis", ClassHealth, 0.95},
	{"medical", ClassHealth, 0.90},
	{"prescription", ClassHealth, 0.92},
	{"blood_type", ClassHealth, 0.90},
	{"allergy", ClassHealth, 0.88},
	{"insurance", ClassHealth, 0.70},

	// PII.
	{"ssn", ClassPII, 0.98},
	{"social_security", ClassPII, 0.98},
	{"passport", ClassPII, 0.95},
	{"driver_license", ClassPII, 0.95},
	{"date_of_birth", ClassPII, 0.92},
	{"birthdate", ClassPII, 0.92},
	{"dob", ClassPII, 0.85},
	{"email", ClassPII, 0.85},
	{"phone", ClassPII, 0.85},
	{"address", ClassPII, 0.75},
	{"first_name", ClassPII, 0.80},
	{"last_name", ClassPII, 0.80},
	{"full_name", ClassPII, 0.80},
	{"zip", ClassPII, 0.60},
	{"ip_address", ClassPII, 0.70},
}

// ClassifyField matches a field name against the layered pattern table.
// Returns nil when nothing matches.
func ClassifyField(field, table string) *SensitiveField {
	normalized := normalizeFieldName(field)

	var best *sensitivePattern
	for i := range sensitivePatterns {
		p := &sensitivePatterns[i]
		if !strings.Contains(normalized, p.substring) {
			continue
		}
		if best == nil || p.prior > best.prior {
			best = p
		}
	}
	if best == nil {
		return nil
	}
	return &SensitiveField{
		Field:      field,
		Table:      table,
		Class:      best.class,
		Confidence: best.prior,
	}
}

// ClassifyBoundaries runs classification over every field seen at access
// points, deduplicating by (field, table).
func ClassifyBoundaries(accessPoints []Boundary) []SensitiveField {
	seen := map[string]bool{}
	var out []SensitiveField
	for _, b := range accessPoints {
		for _, field := range b.Fields {
			key := field + "\x00" + b.Table
			if seen[key] {
				continue
			}
			seen[key] = true
			if sf := ClassifyField(field, b.Table); sf != nil {
				out = append(out, *sf)
			}
		}
	}
	return out
}

// normalizeFieldName lowers camelCase into snake_case so one table
// serves both conventions.
func normalizeFieldName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
