// Package faq serves the localized question and answer dataset.
package faq

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"ai-care-assistant-service/internal/models"
)

//go:embed data/faq.yaml
var embeddedDataset []byte

// dataset is the on-disk layout: one entry per locale-neutral item id with
// its localized text keyed by locale.
type dataset struct {
	DefaultLocale string     `yaml:"defaultLocale"`
	Locales       []string   `yaml:"locales"`
	Categories    []category `yaml:"categories"`
	Items         []item     `yaml:"items"`
}

type category struct {
	Key    string            `yaml:"key"`
	Labels map[string]string `yaml:"labels"`
}

type item struct {
	ID          string                   `yaml:"id"`
	CategoryKey string                   `yaml:"categoryKey"`
	Text        map[string]localizedText `yaml:"text"`
}

type localizedText struct {
	Question string   `yaml:"question"`
	Answer   string   `yaml:"answer"`
	Tags     []string `yaml:"tags"`
}

// searchable holds case-folded copies of the matchable fields.
type searchable struct {
	question string
	answer   string
	tags     []string
}

// Store is an immutable, loaded-once FAQ table. It is safe for concurrent use.
type Store struct {
	defaultLocale string
	locales       []string
	matcher       language.Matcher

	items      map[string][]models.FAQItem
	folded     map[string][]searchable
	categories map[string][]string
}

// LoadEmbedded builds a Store from the dataset compiled into the binary.
func LoadEmbedded(defaultLocale string) (*Store, error) {
	return Load(embeddedDataset, defaultLocale)
}

// LoadFile builds a Store from a YAML dataset on disk.
func LoadFile(path, defaultLocale string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read faq dataset: %w", err)
	}
	return Load(data, defaultLocale)
}

// Load parses a YAML dataset. defaultLocale overrides the dataset's own
// default when non-empty.
func Load(data []byte, defaultLocale string) (*Store, error) {
	var ds dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse faq dataset: %w", err)
	}
	if defaultLocale == "" {
		defaultLocale = ds.DefaultLocale
	}
	if len(ds.Locales) == 0 {
		return nil, fmt.Errorf("faq dataset declares no locales")
	}
	if !slices.Contains(ds.Locales, defaultLocale) {
		return nil, fmt.Errorf("default locale %q is not in dataset locales %v", defaultLocale, ds.Locales)
	}

	labels := make(map[string]map[string]string, len(ds.Categories))
	for _, c := range ds.Categories {
		labels[c.Key] = c.Labels
	}

	s := &Store{
		defaultLocale: defaultLocale,
		items:         make(map[string][]models.FAQItem, len(ds.Locales)),
		folded:        make(map[string][]searchable, len(ds.Locales)),
		categories:    make(map[string][]string, len(ds.Locales)),
	}

	// The default locale goes first so the matcher falls back to it.
	s.locales = append([]string{defaultLocale}, slices.DeleteFunc(slices.Clone(ds.Locales), func(l string) bool {
		return l == defaultLocale
	})...)
	tags := make([]language.Tag, 0, len(s.locales))
	for _, l := range s.locales {
		tag, err := language.Parse(l)
		if err != nil {
			return nil, fmt.Errorf("invalid locale %q: %w", l, err)
		}
		tags = append(tags, tag)
	}
	s.matcher = language.NewMatcher(tags)

	fold := cases.Fold()
	for _, it := range ds.Items {
		catLabels, ok := labels[it.CategoryKey]
		if !ok {
			return nil, fmt.Errorf("item %s: unknown category key %q", it.ID, it.CategoryKey)
		}
		for _, l := range ds.Locales {
			text, ok := it.Text[l]
			if !ok {
				return nil, fmt.Errorf("item %s: missing %s text", it.ID, l)
			}
			label, ok := catLabels[l]
			if !ok {
				return nil, fmt.Errorf("category %s: missing %s label", it.CategoryKey, l)
			}

			s.items[l] = append(s.items[l], models.FAQItem{
				ID:          it.ID,
				Category:    label,
				CategoryKey: it.CategoryKey,
				Question:    text.Question,
				Answer:      text.Answer,
				Tags:        text.Tags,
			})

			foldedTags := make([]string, len(text.Tags))
			for i, tag := range text.Tags {
				foldedTags[i] = fold.String(tag)
			}
			s.folded[l] = append(s.folded[l], searchable{
				question: fold.String(text.Question),
				answer:   fold.String(text.Answer),
				tags:     foldedTags,
			})

			if !slices.Contains(s.categories[l], label) {
				s.categories[l] = append(s.categories[l], label)
			}
		}
	}

	return s, nil
}

// DefaultLocale returns the fallback locale.
func (s *Store) DefaultLocale() string {
	return s.defaultLocale
}

// Locales returns the supported locales, default first.
func (s *Store) Locales() []string {
	return slices.Clone(s.locales)
}

// ResolveLocale maps a locale or BCP-47 tag onto a supported locale,
// falling back to the default.
func (s *Store) ResolveLocale(locale string) string {
	if _, ok := s.items[locale]; ok {
		return locale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return s.defaultLocale
	}
	_, idx, conf := s.matcher.Match(tag)
	if conf == language.No {
		return s.defaultLocale
	}
	return s.locales[idx]
}

// ResolveAcceptLanguage picks a supported locale from an Accept-Language
// header value.
func (s *Store) ResolveAcceptLanguage(header string) string {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return s.defaultLocale
	}
	_, idx, conf := s.matcher.Match(tags...)
	if conf == language.No {
		return s.defaultLocale
	}
	return s.locales[idx]
}

// ListByLocale returns every item for the locale, in dataset order.
func (s *Store) ListByLocale(locale string) []models.FAQItem {
	return cloneItems(s.items[s.ResolveLocale(locale)])
}

// Search returns the items whose question, answer or any tag contains the
// query, ignoring case. A blank query returns the full list.
func (s *Store) Search(query, locale string) []models.FAQItem {
	locale = s.ResolveLocale(locale)
	if strings.TrimSpace(query) == "" {
		return cloneItems(s.items[locale])
	}

	q := cases.Fold().String(query)
	items := s.items[locale]
	out := []models.FAQItem{}
	for i, f := range s.folded[locale] {
		if f.matches(q) {
			out = append(out, cloneItem(items[i]))
		}
	}
	return out
}

func (f searchable) matches(q string) bool {
	if strings.Contains(f.question, q) || strings.Contains(f.answer, q) {
		return true
	}
	for _, tag := range f.tags {
		if strings.Contains(tag, q) {
			return true
		}
	}
	return false
}

// ByCategory returns the items whose localized category label equals
// category exactly. The locale-neutral category key is also accepted.
func (s *Store) ByCategory(category, locale string) []models.FAQItem {
	out := []models.FAQItem{}
	for _, it := range s.items[s.ResolveLocale(locale)] {
		if it.Category == category || it.CategoryKey == category {
			out = append(out, cloneItem(it))
		}
	}
	return out
}

// Categories returns the distinct category labels in dataset order.
func (s *Store) Categories(locale string) []string {
	return slices.Clone(s.categories[s.ResolveLocale(locale)])
}

func cloneItem(it models.FAQItem) models.FAQItem {
	it.Tags = slices.Clone(it.Tags)
	return it
}

func cloneItems(items []models.FAQItem) []models.FAQItem {
	out := make([]models.FAQItem, len(items))
	for i, it := range items {
		out[i] = cloneItem(it)
	}
	return out
}
