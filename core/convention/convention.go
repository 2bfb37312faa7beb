// Package convention derives names from other names: type names from field
// names, storage tables from type names, and field-name suffix rules.
package convention

import (
	"strings"
	"unicode"
)

// Camelize converts "admin_user" to "AdminUser".
func Camelize(word string) string {
	var b strings.Builder
	for _, part := range strings.FieldsFunc(word, isSeparator) {
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

// Underscore converts "AdminUser" to "admin_user".
func Underscore(word string) string {
	var b strings.Builder
	runes := []rune(word)
	for i, r := range runes {
		if isSeparator(r) {
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
			continue
		}
		if unicode.IsUpper(r) {
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i > 0 && i+1 < len(runes) && unicode.IsUpper(runes[i-1]) && unicode.IsLower(runes[i+1])
			if (prevLower || nextLower) && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// TableName returns the storage table for an entity type: "AdminUser" -> "admin_users".
func TableName(typeName string) string {
	return Pluralize(Underscore(typeName))
}

// ForeignKey returns the key field for an association field: "user" -> "user_id".
func ForeignKey(field string) string {
	return field + "_id"
}

// ForeignType returns the type field paired with a key field:
// "user_id" -> "user_type", "owner" -> "owner_type".
func ForeignType(key string) string {
	return strings.TrimSuffix(key, "_id") + "_type"
}

func isSeparator(r rune) bool {
	return r == '_' || r == '-' || r == ' ' || r == '.'
}
