package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Metadata defaults applied when a match lacks a field or the field has an
// unusable type.
const (
	DefaultTitle      = "No Title"
	DefaultBrand      = "Unknown"
	DefaultCategory   = "General"
	DefaultCategories = "Uncategorized"
	DefaultPriceText  = "N/A"
	UnknownProductID  = "unknown-id"
)

// Price is either a number (hybrid catalogue) or free text such as "$129.00"
// or "N/A" (clip catalogue). It encodes to the matching JSON type.
type Price struct {
	Amount float64
	Text   string
	IsText bool
}

// NumericPrice returns a price that encodes as a JSON number.
func NumericPrice(amount float64) Price {
	return Price{Amount: amount}
}

// TextPrice returns a price that encodes as a JSON string.
func TextPrice(text string) Price {
	return Price{Text: text, IsText: true}
}

// String renders the price for logs and prompts.
func (p Price) String() string {
	if p.IsText {
		return p.Text
	}
	return strconv.FormatFloat(p.Amount, 'f', -1, 64)
}

// MarshalJSON implements json.Marshaler.
func (p Price) MarshalJSON() ([]byte, error) {
	if p.IsText {
		return json.Marshal(p.Text)
	}
	return json.Marshal(p.Amount)
}

// UnmarshalJSON accepts a JSON number or string.
func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = TextPrice(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("price: %w", err)
	}
	*p = NumericPrice(f)
	return nil
}

// Product is the catalogue entry attached to a vector match. Brand and
// Category are filled for the hybrid variant, Categories for clip.
type Product struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Price      Price  `json:"price"`
	Brand      string `json:"brand"`
	Category   string `json:"category"`
	Categories string `json:"categories"`
	ImageURL   string `json:"image_url"`
}

type hybridProductJSON struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Price    Price  `json:"price"`
	Brand    string `json:"brand"`
	Category string `json:"category"`
	ImageURL string `json:"image_url"`
}

type clipProductJSON struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Price      Price  `json:"price"`
	Categories string `json:"categories"`
	ImageURL   string `json:"image_url"`
}

// MarshalJSON emits the field set of the product's variant: a text price
// marks the clip catalogue, a numeric one the hybrid catalogue. Every field
// of that set is present even when empty.
func (p Product) MarshalJSON() ([]byte, error) {
	if p.Price.IsText {
		return json.Marshal(clipProductJSON{
			ID: p.ID, Title: p.Title, Price: p.Price,
			Categories: p.Categories, ImageURL: p.ImageURL,
		})
	}
	return json.Marshal(hybridProductJSON{
		ID: p.ID, Title: p.Title, Price: p.Price,
		Brand: p.Brand, Category: p.Category, ImageURL: p.ImageURL,
	})
}

// Recommendation pairs a product with its generated marketing copy.
type Recommendation struct {
	Product              Product `json:"product"`
	GeneratedDescription string  `json:"generated_description"`
}

// Match is one nearest-neighbour hit returned by a vector index.
type Match struct {
	ID       string         `json:"id"`
	Score    float32        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ProductFromMatch maps match metadata onto a Product using the variant's
// field set and defaults.
func ProductFromMatch(v Variant, m Match) Product {
	md := m.Metadata
	if v == VariantHybrid {
		return Product{
			ID:       m.ID,
			Title:    stringField(md, "title", DefaultTitle),
			Price:    NumericPrice(numberField(md, "price", 0)),
			Brand:    stringField(md, "brand", DefaultBrand),
			Category: stringField(md, "category", DefaultCategory),
			ImageURL: stringField(md, "image_url", ""),
		}
	}

	id := m.ID
	if id == "" {
		id = UnknownProductID
	}
	return Product{
		ID:         id,
		Title:      stringField(md, "title", DefaultTitle),
		Price:      TextPrice(stringField(md, "price", DefaultPriceText)),
		Categories: stringField(md, "categories", DefaultCategories),
		ImageURL:   stringField(md, "image_url", ""),
	}
}

// CategoryLabel returns the category text used in the description prompt.
func (p Product) CategoryLabel() string {
	if p.Categories != "" {
		return p.Categories
	}
	return p.Category
}

// stringField reads key as text. Lists are joined with ", " and numbers are
// formatted without trailing zeros. Anything else yields def.
func stringField(md map[string]any, key, def string) string {
	raw, ok := md[key]
	if !ok || raw == nil {
		return def
	}
	switch val := raw.(type) {
	case string:
		return val
	case float64:
		if math.IsNaN(val) {
			return "nan"
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case []string:
		return strings.Join(val, ", ")
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			} else {
				parts = append(parts, fmt.Sprint(item))
			}
		}
		return strings.Join(parts, ", ")
	default:
		return def
	}
}

// numberField reads key as a float. Numeric strings such as "12.50" or
// "$12.50" are parsed; anything else yields def.
func numberField(md map[string]any, key string, def float64) float64 {
	raw, ok := md[key]
	if !ok || raw == nil {
		return def
	}
	switch val := raw.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return def
		}
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case string:
		s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(val), "$"))
		s = strings.ReplaceAll(s, ",", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return def
		}
		return f
	default:
		return def
	}
}
