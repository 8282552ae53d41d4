package widget

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed faq_catalog.yaml
var faqCatalog []byte

// FaqEntry is one question/answer pair of the static catalog.
type FaqEntry struct {
	Question string `yaml:"question" json:"question"`
	Answer   string `yaml:"answer" json:"answer"`
}

// Catalog parses the embedded FAQ catalog.
func Catalog() ([]FaqEntry, error) {
	return ParseCatalog(faqCatalog)
}

// MustCatalog is Catalog for callers that cannot run without it.
func MustCatalog() []FaqEntry {
	entries, err := Catalog()
	if err != nil {
		panic(err)
	}
	return entries
}

// ParseCatalog decodes a YAML list of FAQ entries.
func ParseCatalog(data []byte) ([]FaqEntry, error) {
	var entries []FaqEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode faq catalog: %w", err)
	}
	if len(entries) == 0 {
		return nil, errors.New("faq catalog is empty")
	}
	for i, entry := range entries {
		if strings.TrimSpace(entry.Question) == "" || strings.TrimSpace(entry.Answer) == "" {
			return nil, fmt.Errorf("faq catalog entry %d is incomplete", i)
		}
	}
	return entries, nil
}
