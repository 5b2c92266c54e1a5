package models

// FAQItem is one localized question/answer record.
type FAQItem struct {
	ID          string   `json:"id"`
	Category    string   `json:"category"`
	CategoryKey string   `json:"categoryKey"`
	Question    string   `json:"question"`
	Answer      string   `json:"answer"`
	Tags        []string `json:"tags"`
}
