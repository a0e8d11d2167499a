package receipt

import "strings"

// DefaultCategory is used when a receipt carries no category
const DefaultCategory = "Sonstige"

// Categories is the catalogue a receipt category must come from
var Categories = []string{
	"Geschäftlich",
	"Privat",
	"Lebensmittel",
	"Baumarkt",
	"Baustoff",
	"Tankstelle",
	"Möbel",
	"Elektronik",
	"Telekommunikation",
	"Energie",
	"Entsorgung",
	"Drogerie",
	"Werkzeug",
	"KFZ",
	"Bürobedarf",
	DefaultCategory,
}

// synonyms map loose recognizer output onto the catalogue
var synonyms = map[string]string{
	"tanken":      "Tankstelle",
	"supermarkt":  "Lebensmittel",
	"auto":        "KFZ",
	"büro":        "Bürobedarf",
	"buerobedarf": "Bürobedarf",
	"moebel":      "Möbel",
	"telefon":     "Telekommunikation",
	"internet":    "Telekommunikation",
	"strom":       "Energie",
	"business":    "Geschäftlich",
	"private":     "Privat",
}

// CanonicalCategory maps input onto the catalogue, ignoring case.
// The second result is false when input matched nothing.
func CanonicalCategory(input string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}
	for _, c := range Categories {
		if strings.ToLower(c) == normalized {
			return c, true
		}
	}
	if c, ok := synonyms[normalized]; ok {
		return c, true
	}
	return "", false
}
