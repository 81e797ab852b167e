package domain

import "fmt"

// Variant selects the embedding model and product schema the API serves.
type Variant string

// Supported variants.
const (
	// VariantHybrid queries with a MiniLM text embedding followed by a CLIP
	// text embedding and returns products with brand and category.
	VariantHybrid Variant = "hybrid"
	// VariantClip queries with a CLIP text embedding and returns products
	// with a categories string and a free-form price.
	VariantClip Variant = "clip"
)

// Vector dimensions of the embedding models.
const (
	TextEmbeddingDims   = 384
	ClipEmbeddingDims   = 512
	HybridEmbeddingDims = TextEmbeddingDims + ClipEmbeddingDims
)

// ParseVariant validates a variant name.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(s); v {
	case VariantHybrid, VariantClip:
		return v, nil
	default:
		return "", fmt.Errorf("unknown variant %q (want hybrid or clip)", s)
	}
}

// Dimensions returns the query vector length for the variant.
func (v Variant) Dimensions() int {
	if v == VariantHybrid {
		return HybridEmbeddingDims
	}
	return ClipEmbeddingDims
}

// DefaultIndexName returns the Pinecone index the variant was built against.
func (v Variant) DefaultIndexName() string {
	if v == VariantHybrid {
		return "product-recommendation"
	}
	return "product-recommender-clip"
}

// RequiresPrompt reports whether blank prompts are rejected before any
// upstream call. Only the clip variant validates the prompt.
func (v Variant) RequiresPrompt() bool {
	return v == VariantClip
}
