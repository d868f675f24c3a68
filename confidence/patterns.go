package confidence

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// CategorySet groups term patterns by category. Coverage is counted per
// category: one category matches at most once no matter how many of its
// patterns hit.
type CategorySet struct {
	names    []string
	patterns map[string]*regexp.Regexp
}

// NewCategorySet compiles a category -> term-pattern mapping. Each category's
// patterns are joined into a single case-insensitive word-bounded
// alternation.
func NewCategorySet(categories map[string][]string) (*CategorySet, error) {
	cs := &CategorySet{patterns: make(map[string]*regexp.Regexp, len(categories))}
	for name, terms := range categories {
		if len(terms) == 0 {
			continue
		}
		re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(terms, "|") + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("category %q: %w", name, err)
		}
		cs.patterns[name] = re
		cs.names = append(cs.names, name)
	}
	sort.Strings(cs.names)
	return cs, nil
}

// MustCategorySet is NewCategorySet that panics on a bad pattern.
// Intended for static defaults.
func MustCategorySet(categories map[string][]string) *CategorySet {
	cs, err := NewCategorySet(categories)
	if err != nil {
		panic(err)
	}
	return cs
}

// Matches returns how many categories match the text.
func (cs *CategorySet) Matches(text string) int {
	if cs == nil || text == "" {
		return 0
	}
	n := 0
	for _, name := range cs.names {
		if cs.patterns[name].MatchString(text) {
			n++
		}
	}
	return n
}

// Len returns the number of categories.
func (cs *CategorySet) Len() int {
	if cs == nil {
		return 0
	}
	return len(cs.names)
}

// DefaultDomainCategories returns the built-in domain vocabulary, grouped by
// category. Callers with their own domain should supply their own set.
func DefaultDomainCategories() *CategorySet {
	return MustCategorySet(map[string][]string{
		"condition":  {"diabetes", "hypertension", "asthma", "arthritis", "anemia", "migraine", "infection", "allergy", "cancer", "obesity"},
		"medication": {"insulin", "metformin", "ibuprofen", "antibiotic[s]?", "statin[s]?", "aspirin", "vaccine[s]?", "dosage", "prescription"},
		"symptom":    {"pain", "fever", "fatigue", "nausea", "dizziness", "cough", "rash", "swelling", "headache"},
		"procedure":  {"surgery", "biopsy", "screening", "x-?ray", "mri", "ultrasound", "transplant", "dialysis"},
		"anatomy":    {"heart", "liver", "kidney[s]?", "lung[s]?", "pancreas", "thyroid", "artery", "joint[s]?"},
	})
}

// DefaultContextCategories returns the built-in conversational/contextual
// vocabulary, disjoint from the domain set.
func DefaultContextCategories() *CategorySet {
	return MustCategorySet(map[string][]string{
		"followup":   {"also", "additionally", "what about", "and if", "then what"},
		"personal":   {"my", "me", "mine", "i have", "i am", "i'm", "should i"},
		"temporal":   {"yesterday", "today", "tomorrow", "last (?:week|month|year)", "recently", "currently"},
		"comparison": {"better", "worse", "versus", "vs", "compared? (?:to|with)", "difference between"},
		"clarify":    {"what do you mean", "explain", "clarify", "in other words", "for example"},
	})
}
