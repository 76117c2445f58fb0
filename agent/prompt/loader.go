package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	contractx "github.com/shoptalk-ai/shoptalk/agent/contract"
)

var (
	//go:embed template/transactional.txt
	transactionalRaw string

	//go:embed template/assistance.txt
	assistanceRaw string

	//go:embed template/extractor.txt
	extractorRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Transactional string
	Assistance    string
	Extractor     string
}

// LoadPromptSet returns the embedded prompts, trimmed. Safe to call
// concurrently.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Transactional: strings.TrimSpace(transactionalRaw),
		Assistance:    strings.TrimSpace(assistanceRaw),
		Extractor:     strings.TrimSpace(extractorRaw),
	}
}

func (p PromptSet) Validate() error {
	for name, content := range map[string]string{
		"transactional": p.Transactional,
		"assistance":    p.Assistance,
		"extractor":     p.Extractor,
	} {
		if content == "" {
			return fmt.Errorf("%w: %s", contractx.ErrPromptMissing, name)
		}
	}
	return nil
}
