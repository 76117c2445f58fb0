package retrieval

import (
	"strings"
	"unicode"
)

// Language codes used by detection and the synonym table. "th-rom" is
// romanized Thai, recognized by particle and numeral-substitution patterns
// ("555" is Thai laughter) rather than script.
const (
	LangEnglish       = "en"
	LangSpanish       = "es"
	LangPortuguese    = "pt"
	LangGerman        = "de"
	LangFrench        = "fr"
	LangThai          = "th"
	LangThaiRomanized = "th-rom"
)

var (
	spanishMarkers    = []rune{'ñ', '¿', '¡'}
	portugueseMarkers = []rune{'ã', 'õ'}
	germanMarkers     = []rune{'ä', 'ö', 'ü', 'ß'}
	frenchMarkers     = []rune{'è', 'ù', 'œ'}

	// Shared by es/pt/fr; only decisive together with a language-specific
	// word. 'ê' and 'à' belong here, not in the French set: both are common
	// in Portuguese.
	romanceMarkers = []rune{'é', 'ç', 'á', 'í', 'ó', 'ú', 'ê', 'à'}

	// Function words plus the catalog nouns customers actually type; a bare
	// noun query like "camiseta" carries no function words at all.
	spanishWords    = map[string]struct{}{"el": {}, "la": {}, "los": {}, "una": {}, "donde": {}, "está": {}, "tienes": {}, "quiero": {}, "busco": {}, "talla": {}, "cuánto": {}, "cuanto": {}, "camiseta": {}, "camisetas": {}, "sudadera": {}, "zapatos": {}, "zapatillas": {}, "vestido": {}, "gorra": {}}
	portugueseWords = map[string]struct{}{"onde": {}, "meu": {}, "minha": {}, "você": {}, "vocês": {}, "tem": {}, "têm": {}, "quero": {}, "estou": {}, "procuro": {}, "preço": {}, "tamanho": {}, "moletom": {}, "tênis": {}, "calça": {}, "camisa": {}}
	frenchWords     = map[string]struct{}{"le": {}, "les": {}, "une": {}, "où": {}, "est": {}, "je": {}, "vous": {}, "avez": {}, "cherche": {}, "commande": {}, "combien": {}, "chaussures": {}, "chemise": {}, "robe": {}, "casquette": {}}
	germanWords     = map[string]struct{}{"der": {}, "die": {}, "das": {}, "ich": {}, "sie": {}, "wo": {}, "ist": {}, "meine": {}, "suche": {}, "haben": {}, "preis": {}, "schuhe": {}, "kleid": {}, "jacke": {}, "hemd": {}, "kapuzenpullover": {}}

	thaiRomanWords = map[string]struct{}{"krub": {}, "krab": {}, "kha": {}, "ka": {}, "mai": {}, "suea": {}, "raka": {}, "rongthao": {}, "yak": {}, "mee": {}, "sabai": {}, "aroi": {}}
)

// DetectLanguage guesses the query language from script, diacritics, and
// token heuristics. Short catalog queries defeat statistical detectors, so
// this stays rule-based and deterministic.
func DetectLanguage(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return LangEnglish
	}

	for _, r := range query {
		if unicode.Is(unicode.Thai, r) {
			return LangThai
		}
	}

	lower := strings.ToLower(query)
	tokens := strings.Fields(lower)

	if hasAnyRune(lower, germanMarkers) {
		return LangGerman
	}
	if hasAnyRune(lower, spanishMarkers) {
		return LangSpanish
	}
	if hasAnyRune(lower, portugueseMarkers) {
		return LangPortuguese
	}
	if hasAnyRune(lower, frenchMarkers) {
		return LangFrench
	}
	if hasAnyRune(lower, romanceMarkers) {
		es := countHits(tokens, spanishWords)
		pt := countHits(tokens, portugueseWords)
		fr := countHits(tokens, frenchWords)
		switch {
		case pt > es && pt >= fr:
			return LangPortuguese
		case fr > es && fr > pt:
			return LangFrench
		default:
			return LangSpanish
		}
	}

	scores := map[string]int{
		LangSpanish:    countHits(tokens, spanishWords),
		LangPortuguese: countHits(tokens, portugueseWords),
		LangFrench:     countHits(tokens, frenchWords),
		LangGerman:     countHits(tokens, germanWords),
	}

	romanThai := countHits(tokens, thaiRomanWords)
	for _, tok := range tokens {
		// Numeral substitution: "555" (ha ha ha) and digit-suffixed particles
		// mark romanized Thai chat style.
		if strings.Trim(tok, "5") == "" && len(tok) >= 2 {
			romanThai += 2
		}
	}
	scores[LangThaiRomanized] = romanThai

	bestLang, bestScore := LangEnglish, 0
	for _, lang := range []string{LangSpanish, LangPortuguese, LangFrench, LangGerman, LangThaiRomanized} {
		if scores[lang] > bestScore {
			bestLang, bestScore = lang, scores[lang]
		}
	}
	if bestScore == 0 {
		return LangEnglish
	}
	return bestLang
}

func hasAnyRune(s string, markers []rune) bool {
	return strings.ContainsFunc(s, func(r rune) bool {
		for _, m := range markers {
			if r == m {
				return true
			}
		}
		return false
	})
}

func countHits(tokens []string, words map[string]struct{}) int {
	n := 0
	for _, tok := range tokens {
		if _, ok := words[strings.Trim(tok, ".,!?")]; ok {
			n++
		}
	}
	return n
}
