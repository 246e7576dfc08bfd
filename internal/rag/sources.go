package rag

import "github.com/mohammad-safakhou/coursechat/models"

// NormalizeSources converts a mixed source list into the structured form
// returned to the presentation boundary. Older tools recorded plain
// string labels; newer ones record models.Source with a separate link.
// Both are accepted, entries of any other shape are dropped.
func NormalizeSources(raw []any) []models.Source {
	if len(raw) == 0 {
		return nil
	}
	out := make([]models.Source, 0, len(raw))
	for _, entry := range raw {
		switch v := entry.(type) {
		case models.Source:
			out = append(out, v)
		case string:
			out = append(out, models.Source{Text: v})
		case map[string]any:
			src := models.Source{}
			if text, ok := v["text"].(string); ok {
				src.Text = text
			}
			if link, ok := v["link"].(string); ok {
				src.Link = link
			}
			if src.Text != "" {
				out = append(out, src)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
