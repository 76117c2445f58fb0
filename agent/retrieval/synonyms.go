package retrieval

import "strings"

// Cross-lingual synonym groups for product nouns and colors. Each group
// holds the equivalent terms across the supported languages; matching any
// member pulls in the whole group when the query language differs from the
// corpus authoring language.
var synonymGroups = [][]string{
	{"t-shirt", "tshirt", "shirt", "camiseta", "camisa", "hemd", "chemise", "เสื้อยืด", "เสื้อเชิ้ต", "suea"},
	{"hoodie", "sweatshirt", "sudadera", "moletom", "kapuzenpullover", "sweat à capuche", "เสื้อฮู้ด"},
	{"shoes", "sneakers", "zapatos", "zapatillas", "tênis", "tenis", "schuhe", "chaussures", "baskets", "รองเท้า", "rongthao"},
	{"dress", "vestido", "kleid", "robe", "ชุดเดรส", "เดรส"},
	{"jacket", "chaqueta", "jaqueta", "jacke", "veste", "แจ็กเก็ต"},
	{"jeans", "vaqueros", "calça", "hose", "jean", "กางเกงยีนส์", "kangkeng"},
	{"bag", "bolso", "bolsa", "tasche", "sac", "กระเป๋า", "krapao"},
	{"cap", "hat", "gorra", "boné", "mütze", "casquette", "หมวก", "muak"},
	{"red", "rojo", "roja", "vermelho", "vermelha", "rot", "rouge", "แดง", "daeng"},
	{"blue", "azul", "blau", "bleu", "น้ำเงิน", "ฟ้า"},
	{"black", "negro", "negra", "preto", "preta", "schwarz", "noir", "ดำ"},
	{"white", "blanco", "blanca", "branco", "branca", "weiß", "weiss", "blanc", "ขาว"},
	{"green", "verde", "grün", "vert", "เขียว"},
	{"yellow", "amarillo", "amarelo", "gelb", "jaune", "เหลือง"},
}

var synonymIndex = buildSynonymIndex()

func buildSynonymIndex() map[string]int {
	idx := make(map[string]int, len(synonymGroups)*8)
	for groupID, group := range synonymGroups {
		for _, term := range group {
			idx[strings.ToLower(term)] = groupID
		}
	}
	return idx
}

// ExpandQuery returns the query terms plus cross-lingual equivalents for any
// term found in the synonym table. Multi-word terms in the table are matched
// against the whole query, single words per token.
func ExpandQuery(query string) []string {
	lower := strings.ToLower(strings.TrimSpace(query))
	if lower == "" {
		return nil
	}

	terms := strings.Fields(lower)
	seen := make(map[string]struct{}, len(terms)*4)
	expanded := make([]string, 0, len(terms)*4)

	add := func(term string) {
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		expanded = append(expanded, term)
	}

	addGroup := func(groupID int) {
		for _, synonym := range synonymGroups[groupID] {
			add(strings.ToLower(synonym))
		}
	}

	for _, term := range terms {
		add(term)
		if groupID, ok := synonymIndex[term]; ok {
			addGroup(groupID)
		}
	}

	// Multi-word table entries ("sweat à capuche") never match per-token.
	for groupID, group := range synonymGroups {
		for _, term := range group {
			if strings.Contains(term, " ") && strings.Contains(lower, strings.ToLower(term)) {
				addGroup(groupID)
				break
			}
		}
	}

	return expanded
}
