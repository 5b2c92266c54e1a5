package http

import (
	"net/http"

	"ai-care-assistant-service/internal/models"
)

type faqListResponse struct {
	Locale string           `json:"locale"`
	Items  []models.FAQItem `json:"items"`
}

type faqCategoriesResponse struct {
	Locale     string   `json:"locale"`
	Categories []string `json:"categories"`
}

type faqSearchResponse struct {
	Results []models.FAQItem `json:"results"`
}

// locale prefers the locale query parameter and falls back to
// Accept-Language.
func (h *handlers) locale(r *http.Request) string {
	if l := r.URL.Query().Get("locale"); l != "" {
		return h.deps.FAQ.ResolveLocale(l)
	}
	return h.deps.FAQ.ResolveAcceptLanguage(r.Header.Get("Accept-Language"))
}

func (h *handlers) listFAQ(w http.ResponseWriter, r *http.Request) {
	locale := h.locale(r)

	var items []models.FAQItem
	if category := r.URL.Query().Get("category"); category != "" {
		items = h.deps.FAQ.ByCategory(category, locale)
	} else {
		items = h.deps.FAQ.ListByLocale(locale)
	}
	writeJSON(w, http.StatusOK, faqListResponse{Locale: locale, Items: items})
}

func (h *handlers) faqCategories(w http.ResponseWriter, r *http.Request) {
	locale := h.locale(r)
	writeJSON(w, http.StatusOK, faqCategoriesResponse{
		Locale:     locale,
		Categories: h.deps.FAQ.Categories(locale),
	})
}

func (h *handlers) searchFAQ(w http.ResponseWriter, r *http.Request) {
	locale := h.locale(r)
	results := h.deps.FAQ.Search(r.URL.Query().Get("q"), locale)
	h.deps.Metrics.RecordFAQSearch(locale, len(results))
	writeJSON(w, http.StatusOK, faqSearchResponse{Results: results})
}
