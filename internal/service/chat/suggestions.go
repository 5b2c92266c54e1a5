package chat

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/suggestions.yaml
var embeddedSuggestions []byte

type suggestionRule struct {
	User        []string `yaml:"user"`
	Combined    []string `yaml:"combined"`
	Suggestions []string `yaml:"suggestions"`
}

type suggestionTopic struct {
	Name     string           `yaml:"name"`
	Keywords []string         `yaml:"keywords"`
	Rules    []suggestionRule `yaml:"rules"`
	Default  []string         `yaml:"default"`
}

type suggestionCue struct {
	Words       []string `yaml:"words"`
	Suggestions []string `yaml:"suggestions"`
}

// Suggester picks follow-up prompts for a user message and reply pair
// using an ordered keyword table.
type Suggester struct {
	Topics          []suggestionTopic `yaml:"topics"`
	ReplyCues       []suggestionCue   `yaml:"replyCues"`
	QuestionCues    []suggestionCue   `yaml:"questionCues"`
	QuestionDefault []string          `yaml:"questionDefault"`
	Fallback        []string          `yaml:"fallback"`
}

// NewSuggester loads the built-in suggestion table.
func NewSuggester() (*Suggester, error) {
	var s Suggester
	if err := yaml.Unmarshal(embeddedSuggestions, &s); err != nil {
		return nil, fmt.Errorf("parse suggestion table: %w", err)
	}
	return &s, nil
}

// Suggest returns the follow-up prompts for an exchange. It never returns
// an empty list.
func (s *Suggester) Suggest(userMessage, reply string) []string {
	user := strings.ToLower(userMessage)
	combined := user + " " + strings.ToLower(reply)

	for _, topic := range s.Topics {
		if !containsAny(combined, topic.Keywords) {
			continue
		}
		for _, r := range topic.Rules {
			if containsAny(user, r.User) || containsAny(combined, r.Combined) {
				return clone(r.Suggestions)
			}
		}
		return clone(topic.Default)
	}

	replyLower := strings.ToLower(reply)
	for _, cue := range s.ReplyCues {
		if containsAny(replyLower, cue.Words) {
			return clone(cue.Suggestions)
		}
	}

	if strings.Contains(userMessage, "?") {
		for _, cue := range s.QuestionCues {
			if containsAny(user, cue.Words) {
				return clone(cue.Suggestions)
			}
		}
		return clone(s.QuestionDefault)
	}

	return clone(s.Fallback)
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func clone(in []string) []string {
	return append([]string(nil), in...)
}
