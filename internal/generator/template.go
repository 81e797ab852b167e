package generator

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/AGtheOG/ikarus3d-advisorBot/internal/domain"
)

const promptTemplate = `You are a creative marketing assistant. Your task is to write a short,
engaging, and creative product description (2-3 sentences) for a furniture website.
Do NOT just list the features. Make it sound appealing.

Product Details:
- Title: {{.Title}}
- {{.CategoryLabel}}: {{.Category}}

Your Creative Description:`

// Template renders the description prompt for one product.
type Template struct {
	tmpl          *template.Template
	categoryLabel string
}

type promptData struct {
	Title         string
	CategoryLabel string
	Category      string
}

// NewTemplate returns the prompt for v. The hybrid catalogue has a single
// category, the clip catalogue a list of categories.
func NewTemplate(v domain.Variant) *Template {
	label := "Categories"
	if v == domain.VariantHybrid {
		label = "Category"
	}
	return &Template{
		tmpl:          template.Must(template.New("description").Parse(promptTemplate)),
		categoryLabel: label,
	}
}

// Render fills in the product title and category text.
func (t *Template) Render(title, category string) (string, error) {
	var b strings.Builder
	err := t.tmpl.Execute(&b, promptData{
		Title:         title,
		CategoryLabel: t.categoryLabel,
		Category:      category,
	})
	if err != nil {
		return "", fmt.Errorf("render description prompt: %w", err)
	}
	return b.String(), nil
}
