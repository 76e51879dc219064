// Package classify maps free-text product labels to a fixed product category.
//
// Classification is a priority-ordered rule table: rules are evaluated top
// down and the first rule with a keyword contained in the label wins. The
// order of the table is part of its meaning.
package classify

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AngelCh415/disparos-etl/internal/models"
)

type Rule struct {
	Category models.Category `yaml:"category"`
	Keywords []string        `yaml:"keywords"`
}

// DefaultRules is the rule table used when no rules file is configured.
var DefaultRules = []Rule{
	{models.CategoryNovo, []string{"novo", "credito novo", "negativos", "sefaz", "pmesp", "spprev", "tomador", "super", "hubspot", "resgate", "carteira", "menor50", "menor 50", "virada"}},
	{models.CategoryAmbosCartao, []string{"cartões", "cartoes", "benef & cartao", "cartões consignados", "benefício e cartão"}},
	{models.CategoryCartao, []string{"cartão", "cartao", "consignado"}},
	{models.CategoryBeneficio, []string{"benef", "beneficio", "complementar", "temporario", "tempo", "temp", "comlurb", "Benefício"}},
	{models.CategoryNQB, []string{"nqb"}},
}

type Classifier struct {
	rules []Rule
}

// New builds a classifier over rules, keeping their order. Keywords are
// lower-cased once here so Classify compares against lower-cased labels.
func New(rules []Rule) (*Classifier, error) {
	out := make([]Rule, 0, len(rules))
	for i, r := range rules {
		if !r.Category.Valid() || r.Category == models.CategoryOutros {
			return nil, fmt.Errorf("rule %d: invalid category %q", i, r.Category)
		}
		kw := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			k = strings.ToLower(strings.TrimSpace(k))
			if k != "" {
				kw = append(kw, k)
			}
		}
		if len(kw) == 0 {
			return nil, fmt.Errorf("rule %d (%s): no keywords", i, r.Category)
		}
		out = append(out, Rule{Category: r.Category, Keywords: kw})
	}
	return &Classifier{rules: out}, nil
}

// Default returns the classifier over DefaultRules.
func Default() *Classifier {
	c, err := New(DefaultRules)
	if err != nil {
		panic(err)
	}
	return c
}

// Classify returns the category of label. A nil or blank label is OUTROS.
func (c *Classifier) Classify(label *string) models.Category {
	if label == nil {
		return models.CategoryOutros
	}
	s := strings.ToLower(strings.TrimSpace(*label))
	if s == "" {
		return models.CategoryOutros
	}
	for _, r := range c.rules {
		for _, k := range r.Keywords {
			if strings.Contains(s, k) {
				return r.Category
			}
		}
	}
	return models.CategoryOutros
}

// ClassifyString is Classify for a plain string.
func (c *Classifier) ClassifyString(label string) models.Category {
	return c.Classify(&label)
}

func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	for i, r := range c.rules {
		out[i] = Rule{Category: r.Category, Keywords: append([]string(nil), r.Keywords...)}
	}
	return out
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadFile reads a YAML rule table. The order of `rules:` is the priority order.
//
//	rules:
//	  - category: NOVO
//	    keywords: [novo, credito novo]
func LoadFile(path string) (*Classifier, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s: no rules", path)
	}
	return New(f.Rules)
}
