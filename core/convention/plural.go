package convention

import "strings"

// irregular plurals of words that end table names.
var irregular = map[string]string{
	"person": "people",
	"man":    "men",
	"woman":  "women",
	"child":  "children",
	"datum":  "data",
	"medium": "media",
	"index":  "indices",
	"matrix": "matrices",
	"vertex": "vertices",
	"status": "statuses",
	"schema": "schemas",
}

// uncountable words keep their form.
var uncountable = map[string]bool{
	"equipment":   true,
	"information": true,
	"metadata":    true,
	"news":        true,
	"series":      true,
	"species":     true,
}

// suffix rules, tried in order: replace the suffix of the last word.
var rules = []struct{ suffix, replace string }{
	{"sis", "ses"},
	{"ife", "ives"},
	{"lf", "lves"},
	{"ss", "sses"},
	{"sh", "shes"},
	{"ch", "ches"},
	{"x", "xes"},
	{"z", "zes"},
	{"us", "uses"},
	{"s", "ses"},
}

// Pluralize returns the plural of a snake_case name, inflecting only its
// last word: "line_item" -> "line_items", "admin_person" -> "admin_people".
func Pluralize(name string) string {
	if name == "" {
		return ""
	}
	head, last := "", name
	if i := strings.LastIndexByte(name, '_'); i >= 0 {
		head, last = name[:i+1], name[i+1:]
	}
	return head + pluralWord(last)
}

func pluralWord(w string) string {
	lower := strings.ToLower(w)
	if uncountable[lower] {
		return w
	}
	if p, ok := irregular[lower]; ok {
		return w[:1] + p[1:]
	}
	for _, r := range rules {
		if strings.HasSuffix(lower, r.suffix) {
			return w[:len(w)-len(r.suffix)] + r.replace
		}
	}
	if n := len(lower); n > 1 && lower[n-1] == 'y' && !strings.ContainsRune("aeiou", rune(lower[n-2])) {
		return w[:n-1] + "ies"
	}
	return w + "s"
}
