// Package router maps an inbound message to the specialist that should
// handle it. Classification is pure pattern matching with no I/O so it adds
// no latency to the turn and identical input always yields identical output.
package router

import (
	"regexp"
	"sort"
	"strings"

	contractx "github.com/shoptalk-ai/shoptalk/agent/contract"
)

const (
	StepProductNoun          = "product_noun"
	StepShortMessage         = "short_message"
	StepRecentOrder          = "recent_order"
	StepDefaultTransactional = "default_transactional"
)

type Config struct {
	// FallbackChain is applied in order when no pattern matches. The order is
	// a policy choice, not an invariant; it is configurable on purpose.
	FallbackChain []string `split_words:"true" default:"product_noun,short_message,recent_order,default_transactional"`
}

// History is the per-customer context the router may consult. The caller
// precomputes HasRecentOrder so Classify stays clock-free.
type History struct {
	Messages       []contractx.Message
	HasRecentOrder bool
}

type Router struct {
	fallbackChain []string
}

func New(cfg Config) *Router {
	chain := make([]string, 0, len(cfg.FallbackChain))
	for _, step := range cfg.FallbackChain {
		step = strings.TrimSpace(step)
		if step != "" {
			chain = append(chain, step)
		}
	}
	if len(chain) == 0 {
		chain = []string{StepProductNoun, StepShortMessage, StepRecentOrder, StepDefaultTransactional}
	}
	return &Router{fallbackChain: chain}
}

// Classify decides which specialist handles the message. Ties between the
// two categories favor transactional: its specialist can still redirect,
// while assistance rarely recovers a missed purchase intent.
func (r *Router) Classify(text string, hist History) contractx.RoutingDecision {
	norm := strings.ToLower(strings.TrimSpace(text))

	txConf, txIDs := bestMatch(transactionalPatterns, norm)
	asConf, asIDs := bestMatch(assistancePatterns, norm)

	switch {
	case txConf > 0 && asConf == 0:
		return matched(contractx.AgentTypeTransactional, txConf, txIDs)
	case asConf > 0 && txConf == 0:
		return matched(contractx.AgentTypeAssistance, asConf, asIDs)
	case txConf > 0 && asConf > 0:
		if asConf > txConf {
			return matched(contractx.AgentTypeAssistance, asConf, asIDs)
		}
		return matched(contractx.AgentTypeTransactional, txConf, txIDs)
	}

	for _, step := range r.fallbackChain {
		if dec, ok := applyFallback(step, norm, hist); ok {
			return dec
		}
	}

	return contractx.RoutingDecision{
		Agent:      contractx.AgentTypeTransactional,
		Confidence: 0.4,
		Rationale:  "fallback: no signal, defaulting to transactional",
	}
}

func matched(agent contractx.AgentType, conf float64, ids []string) contractx.RoutingDecision {
	return contractx.RoutingDecision{
		Agent:             agent,
		Confidence:        conf,
		MatchedPatternIDs: ids,
		Rationale:         "matched " + string(agent) + " vocabulary",
	}
}

func applyFallback(step, norm string, hist History) (contractx.RoutingDecision, bool) {
	switch step {
	case StepProductNoun:
		if productNounPattern.MatchString(norm) {
			return contractx.RoutingDecision{
				Agent:      contractx.AgentTypeTransactional,
				Confidence: 0.6,
				Rationale:  "fallback: known product noun present",
			}, true
		}
	case StepShortMessage:
		if len(strings.Fields(norm)) < 3 {
			return contractx.RoutingDecision{
				Agent:      contractx.AgentTypeAssistance,
				Confidence: 0.5,
				Rationale:  "fallback: message shorter than 3 tokens",
			}, true
		}
	case StepRecentOrder:
		if hist.HasRecentOrder {
			return contractx.RoutingDecision{
				Agent:      contractx.AgentTypeAssistance,
				Confidence: 0.45,
				Rationale:  "fallback: customer has a recent order",
			}, true
		}
	case StepDefaultTransactional:
		return contractx.RoutingDecision{
			Agent:      contractx.AgentTypeTransactional,
			Confidence: 0.4,
			Rationale:  "fallback: default transactional",
		}, true
	}
	return contractx.RoutingDecision{}, false
}

func bestMatch(patterns []pattern, norm string) (float64, []string) {
	var (
		best float64
		ids  []string
	)
	for _, p := range patterns {
		if p.re.MatchString(norm) {
			ids = append(ids, p.id)
			if p.weight > best {
				best = p.weight
			}
		}
	}
	sort.Strings(ids)
	return best, ids
}

type pattern struct {
	id     string
	lang   string
	weight float64
	re     *regexp.Regexp
}

func pat(id, lang string, weight float64, expr string) pattern {
	return pattern{
		id:     id,
		lang:   lang,
		weight: weight,
		re:     regexp.MustCompile("(?i)" + expr),
	}
}

// Pattern tables cover 7 language variants: en, es, pt, de, fr, th, and
// romanized Thai (th-rom). Thai script has no word boundaries, so those
// patterns match plain substrings.
var transactionalPatterns = []pattern{
	pat("tx.en.browse", "en", 0.92, `\b(show me|looking for|do you have|have any|i want|i need)\b`),
	pat("tx.en.product", "en", 0.92, `\b(hoodie|hoodies|t-?shirts?|shirts?|sneakers?|shoes?|dress(es)?|jackets?|jeans|caps?|bags?)\b`),
	pat("tx.en.stock", "en", 0.9, `\b(in stock|available|availability|restock)\b`),
	pat("tx.en.size", "en", 0.85, `\b(what sizes?|size chart|does it fit|run (small|large))\b`),
	pat("tx.en.price", "en", 0.9, `\b(how much|price|cost of)\b`),
	pat("tx.es.browse", "es", 0.92, `\b(busco|est[oa]y buscando|tienes|tienen|hay|quiero comprar)\b`),
	pat("tx.es.product", "es", 0.92, `\b(camisetas?|sudaderas?|zapatillas?|zapatos?|vestidos?|chaquetas?|gorras?|bolsos?)\b`),
	pat("tx.es.price", "es", 0.9, `\b(cu[aá]nto (cuesta|vale)|precio|talla|disponible)\b`),
	pat("tx.pt.browse", "pt", 0.92, `\b(procuro|estou procurando|voc[eê]s? t[eê]m|quero comprar)\b`),
	pat("tx.pt.product", "pt", 0.92, `\b(camisas?|camisetas?|moletons?|t[eê]nis|vestidos?|jaquetas?|bon[eé]s?|bolsas?)\b`),
	pat("tx.pt.price", "pt", 0.9, `\b(quanto custa|pre[çc]o|tamanho|dispon[ií]vel)\b`),
	pat("tx.de.browse", "de", 0.92, `\b(ich suche|haben sie|gibt es|ich m[öo]chte kaufen)\b`),
	pat("tx.de.product", "de", 0.92, `\b(kapuzenpullover|hoodies?|hemden?|t-?shirts?|schuhe|sneakers?|kleider?|jacken?)\b`),
	pat("tx.de.price", "de", 0.9, `\b(wie viel kostet|preis|gr[öo][ßs]e|verf[üu]gbar)\b`),
	pat("tx.fr.browse", "fr", 0.92, `\b(je cherche|avez-vous|je veux acheter)\b`),
	pat("tx.fr.product", "fr", 0.92, `\b(sweats? [àa] capuche|chemises?|t-?shirts?|chaussures?|baskets?|robes?|vestes?)\b`),
	pat("tx.fr.price", "fr", 0.9, `\b(combien co[ûu]te|prix|taille|disponible)\b`),
	pat("tx.th.browse", "th", 0.92, `(หา|อยากได้|อยากซื้อ|มีไหม|มีมั้ย)`),
	pat("tx.th.product", "th", 0.92, `(เสื้อ|รองเท้า|กางเกง|กระเป๋า|หมวก|ชุดเดรส)`),
	pat("tx.th.price", "th", 0.9, `(ราคา|เท่าไหร่|เท่าไร|ไซส์)`),
	pat("tx.throm.browse", "th-rom", 0.88, `\b(mee mai|yak dai|yak sue)\b`),
	pat("tx.throm.product", "th-rom", 0.88, `\b(suea|rong ?thao|krapao|kangkeng)\b`),
	pat("tx.throm.price", "th-rom", 0.86, `\b(raka|thao ?rai|sai arai)\b`),
}

var assistancePatterns = []pattern{
	pat("as.en.track", "en", 0.95, `\b(where('s| is)? my (order|package|parcel)|track(ing)?( number)?|shipment|delivery status)\b`),
	pat("as.en.cancel", "en", 0.93, `\b(cancel(lation)?|call off)\b`),
	pat("as.en.refund", "en", 0.93, `\b(refunds?|returns?|exchange)\b`),
	pat("as.en.complaint", "en", 0.9, `\b(complaints?|broken|damaged|defective|wrong item|never arrived)\b`),
	pat("as.en.policy", "en", 0.85, `\b(polic(y|ies)|terms|warranty)\b`),
	pat("as.es.track", "es", 0.95, `\b(d[oó]nde est[aá] mi pedido|rastrear|seguimiento|env[ií]o)\b`),
	pat("as.es.cancel", "es", 0.93, `\b(cancelar|cancelaci[oó]n|reembolso|devoluci[oó]n|queja|reclamo)\b`),
	pat("as.pt.track", "pt", 0.95, `\b(onde est[aá] meu pedido|rastrear|rastreamento|entrega)\b`),
	pat("as.pt.cancel", "pt", 0.93, `\b(cancelar|cancelamento|reembolso|devolucao|devolu[çc][aã]o|reclamacao|reclama[çc][aã]o)\b`),
	pat("as.de.track", "de", 0.95, `\b(wo ist meine bestellung|sendungsverfolgung|lieferstatus)\b`),
	pat("as.de.cancel", "de", 0.93, `\b(stornieren|stornierung|r[üu]ckerstattung|r[üu]ckgabe|beschwerde)\b`),
	pat("as.fr.track", "fr", 0.95, `\b(o[ùu] est ma commande|suivi|livraison)\b`),
	pat("as.fr.cancel", "fr", 0.93, `\b(annuler|annulation|remboursement|retour|r[eé]clamation)\b`),
	pat("as.th.track", "th", 0.95, `(คำสั่งซื้อ|พัสดุ|ติดตาม|ของถึงไหน|จัดส่ง)`),
	pat("as.th.cancel", "th", 0.93, `(ยกเลิก|คืนเงิน|คืนสินค้า|ร้องเรียน)`),
	pat("as.throm.track", "th-rom", 0.9, `\b(phatsadu|tid ?tam|khong theung nai)\b`),
	pat("as.throm.cancel", "th-rom", 0.88, `\b(yok ?loek|khuen ?ngoen)\b`),
}

// productNounPattern backs the product-noun fallback step. Deliberately
// narrower than the transactional tables: bare nouns only, no verbs.
var productNounPattern = regexp.MustCompile(`(?i)\b(hoodie|t-?shirt|shirt|sneaker|shoe|dress|jacket|jeans|cap|bag|camiseta|sudadera|zapatilla|moletom|hemd|chemise|basket)s?\b|เสื้อ|รองเท้า|กางเกง`)
