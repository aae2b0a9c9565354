package heuristics

import (
	"regexp"
	"strings"
)

// Intent tags produced by the rule tables.
const (
	TagTimeSensitive = "time_sensitive"
	TagListing       = "listing"
	TagImage         = "image"
)

// Rule binds one pattern to an intent tag. Tables are evaluated in order and
// the first match wins, so put the more specific patterns first.
type Rule struct {
	Pattern *regexp.Regexp
	Tag     string
}

var englishRules = []Rule{
	{regexp.MustCompile(`(?i)\b(show|send|find|get)\s+(me\s+)?(a\s+|an\s+|some\s+)?(photo|photos|picture|pictures|image|images|pic|pics)\b`), TagImage},
	{regexp.MustCompile(`(?i)\bwhat\s+does\s+.{2,40}\s+look\s+like\b`), TagImage},
	{regexp.MustCompile(`(?i)\b(job|jobs|vacancy|vacancies|opening|openings|hiring|internship|apartment|flat)s?\b.*\b(in|near|at)\b`), TagListing},
	{regexp.MustCompile(`(?i)\b(offers?|listings?|deals?)\b`), TagListing},
	{regexp.MustCompile(`(?i)\b(today|tonight|tomorrow|yesterday|right\s+now|currently|this\s+(week|month|year))\b`), TagTimeSensitive},
	{regexp.MustCompile(`(?i)\b(latest|newest|most\s+recent|breaking|up[-\s]?to[-\s]?date)\b`), TagTimeSensitive},
	{regexp.MustCompile(`(?i)\b(price|prices|cost|stock|exchange\s+rate|schedule|opening\s+hours|score|results?)\b`), TagTimeSensitive},
	{regexp.MustCompile(`(?i)\b(20\d{2})\b.*\b(release|election|version|event)\b`), TagTimeSensitive},
	{regexp.MustCompile(`(?i)\bwho\s+(is|are)\s+the\s+current\b`), TagTimeSensitive},
}

var frenchRules = []Rule{
	{regexp.MustCompile(`(?i)\b(montre|envoie|trouve)[\w-]*\s+(moi\s+)?(une?\s+|des\s+)?(photo|photos|image|images)\b`), TagImage},
	{regexp.MustCompile(`(?i)\b(offres?\s+d'emploi|emplois?|postes?|annonces?|appartements?)\b`), TagListing},
	{regexp.MustCompile(`(?i)\b(aujourd'hui|ce\s+soir|demain|hier|en\s+ce\s+moment|actuellement|cette\s+(semaine|ann[ée]e))\b`), TagTimeSensitive},
	{regexp.MustCompile(`(?i)\b(derni[èe]re?s?|r[ée]cents?|r[ée]centes?|actualit[ée]s?)\b`), TagTimeSensitive},
	{regexp.MustCompile(`(?i)\b(prix|tarifs?|cours|horaires?|programme|r[ée]sultats?)\b`), TagTimeSensitive},
}

var germanRules = []Rule{
	{regexp.MustCompile(`(?i)\b(zeig|schick|such)[\w]*\s+(mir\s+)?(ein\s+|einige\s+)?(foto|fotos|bild|bilder)\b`), TagImage},
	{regexp.MustCompile(`(?i)\b(stellenangebote?|jobs?|wohnungen?|anzeigen)\b`), TagListing},
	{regexp.MustCompile(`(?i)\b(heute|morgen|gestern|gerade|aktuell|diese\s+woche)\b`), TagTimeSensitive},
	{regexp.MustCompile(`(?i)\b(neueste[nrs]?|letzte[nrs]?|preise?|kurs|fahrplan|[öo]ffnungszeiten|ergebnisse?)\b`), TagTimeSensitive},
}

var spanishRules = []Rule{
	{regexp.MustCompile(`(?i)\b(mu[ée]strame|ens[ée][ñn]ame|busca)\s+(una?\s+)?(foto|fotos|imagen|im[áa]genes)\b`), TagImage},
	{regexp.MustCompile(`(?i)\b(ofertas?\s+de\s+empleo|empleos?|trabajos?|anuncios?|pisos?)\b`), TagListing},
	{regexp.MustCompile(`(?i)\b(hoy|ma[ñn]ana|ayer|ahora\s+mismo|actualmente|esta\s+semana)\b`), TagTimeSensitive},
	{regexp.MustCompile(`(?i)\b([úu]ltim[oa]s?|recientes?|precios?|horarios?|resultados?)\b`), TagTimeSensitive},
}

var rulesByLanguage = map[string][]Rule{
	"en": englishRules,
	"fr": frenchRules,
	"de": germanRules,
	"es": spanishRules,
}

// DetectIntent runs the language's rule table (plus the English one as a
// catch-all, since users mix languages) and returns the first matching tag.
func DetectIntent(message, language string) (string, bool) {
	tables := [][]Rule{}
	if rules, ok := rulesByLanguage[normalizeLanguage(language)]; ok {
		tables = append(tables, rules)
	}
	if normalizeLanguage(language) != "en" {
		tables = append(tables, englishRules)
	}

	for _, table := range tables {
		for _, rule := range table {
			if rule.Pattern.MatchString(message) {
				return rule.Tag, true
			}
		}
	}
	return "", false
}

// IsImageRequest reports whether the message asks for pictures.
func IsImageRequest(message, language string) bool {
	tag, ok := DetectIntent(message, language)
	return ok && tag == TagImage
}

// NeedsWebVerification reports whether the message warrants a web lookup
// before answering (time-sensitive or listing-style phrasing).
func NeedsWebVerification(message, language string) bool {
	tag, ok := DetectIntent(message, language)
	return ok && (tag == TagTimeSensitive || tag == TagListing)
}

func normalizeLanguage(language string) string {
	language = strings.ToLower(strings.TrimSpace(language))
	if idx := strings.IndexAny(language, "-_"); idx > 0 {
		language = language[:idx]
	}
	if language == "" {
		return "en"
	}
	return language
}
