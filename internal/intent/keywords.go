package intent

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var defaultKeywordsYAML []byte

// Keywords are the matching vocabularies for each canned branch.
type Keywords struct {
	Agent   []string `yaml:"agent"`
	Waiver  []string `yaml:"waiver"`
	Pricing []string `yaml:"pricing"`
	Booking []string `yaml:"booking"`
	Weather []string `yaml:"weather"`
}

// ParseKeywords decodes a YAML keyword document and folds entries to lower case.
func ParseKeywords(data []byte) (*Keywords, error) {
	var kw Keywords
	if err := yaml.Unmarshal(data, &kw); err != nil {
		return nil, fmt.Errorf("intent: parse keywords: %w", err)
	}
	for _, set := range []*[]string{&kw.Agent, &kw.Waiver, &kw.Pricing, &kw.Booking, &kw.Weather} {
		*set = normalizeSet(*set)
	}
	if len(kw.Agent) == 0 {
		return nil, fmt.Errorf("intent: keyword document has no agent terms")
	}
	return &kw, nil
}

// DefaultKeywords returns the embedded keyword sets.
func DefaultKeywords() *Keywords {
	kw, err := ParseKeywords(defaultKeywordsYAML)
	if err != nil {
		panic(err)
	}
	return kw
}

func normalizeSet(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, term := range in {
		term = strings.Join(strings.Fields(strings.ToLower(term)), " ")
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}

// message is a lowercased message split for matching.
type message struct {
	text  string
	words map[string]struct{}
	count int
}

func newMessage(text string) message {
	lower := strings.ToLower(text)
	tokens := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'')
	})
	words := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		words[strings.Trim(tok, "'")] = struct{}{}
	}
	return message{
		text:  " " + strings.Join(tokens, " ") + " ",
		words: words,
		count: len(tokens),
	}
}

func (m message) has(word string) bool {
	_, ok := m.words[word]
	return ok
}

// matches reports whether any term in set occurs in the message.
func (m message) matches(set []string) bool {
	for _, term := range set {
		if strings.Contains(term, " ") {
			if strings.Contains(m.text, " "+term+" ") {
				return true
			}
			continue
		}
		if m.has(term) {
			return true
		}
	}
	return false
}
