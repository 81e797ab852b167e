package generator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/AGtheOG/ikarus3d-advisorBot/internal/domain"
	apperrors "github.com/AGtheOG/ikarus3d-advisorBot/pkg/errors"
)

type stubModel struct {
	out    string
	err    error
	prompt string
}

func (s *stubModel) Generate(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.out, s.err
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var chair = domain.Product{ID: "B0", Title: "Velvet Armchair", Categories: "Home, Living Room"}

// ============================================================================
// Template Tests
// ============================================================================

func TestTemplate_ClipUsesCategories(t *testing.T) {
	prompt, err := NewTemplate(domain.VariantClip).Render("Velvet Armchair", "Home, Living Room")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(prompt, "You are a creative marketing assistant."))
	assert.Contains(t, prompt, "(2-3 sentences) for a furniture website.")
	assert.Contains(t, prompt, "- Title: Velvet Armchair\n- Categories: Home, Living Room\n")
	assert.True(t, strings.HasSuffix(prompt, "Your Creative Description:"))
}

func TestTemplate_HybridUsesCategory(t *testing.T) {
	prompt, err := NewTemplate(domain.VariantHybrid).Render("Oak Desk", "Office")

	require.NoError(t, err)
	assert.Contains(t, prompt, "- Category: Office\n")
	assert.NotContains(t, prompt, "Categories:")
}

func TestTemplate_DoesNotEscape(t *testing.T) {
	prompt, err := NewTemplate(domain.VariantClip).Render(`Tom & Jerry's "Lamp"`, "<Kids>")

	require.NoError(t, err)
	assert.Contains(t, prompt, `Tom & Jerry's "Lamp"`)
	assert.Contains(t, prompt, "<Kids>")
}

// ============================================================================
// Chain / Generator Tests
// ============================================================================

func TestGenerator_ReturnsTrimmedModelOutput(t *testing.T) {
	model := &stubModel{out: "  Sink into plush velvet.  \n"}
	g := New(NewChain(NewTemplate(domain.VariantClip), model), quiet())

	d, err := g.Describe(context.Background(), chair)

	require.NoError(t, err)
	assert.Equal(t, Description{Text: "Sink into plush velvet."}, d)
	assert.Contains(t, model.prompt, "Categories: Home, Living Room")
}

func TestGenerator_FallbackOnModelError(t *testing.T) {
	before := testutil.ToFloat64(fallbacksTotal.WithLabelValues("error"))
	g := New(NewChain(NewTemplate(domain.VariantClip), &stubModel{err: errors.New("quota exceeded")}), quiet())

	d, err := g.Describe(context.Background(), chair)

	require.NoError(t, err)
	assert.Equal(t, FallbackDescription, d.Text)
	assert.True(t, d.Fallback)
	assert.Equal(t, before+1, testutil.ToFloat64(fallbacksTotal.WithLabelValues("error")))
}

func TestGenerator_FallbackOnEmptyOutput(t *testing.T) {
	g := New(NewChain(NewTemplate(domain.VariantClip), &stubModel{out: "   "}), quiet())

	d, err := g.Describe(context.Background(), chair)

	require.NoError(t, err)
	assert.Equal(t, "Discover a wonderful new addition for your home.", d.Text)
	assert.True(t, d.Fallback)
}

func TestGenerator_UninitializedModelPropagates(t *testing.T) {
	g := New(NewChain(NewTemplate(domain.VariantClip), Unavailable{}), quiet())

	_, err := g.Describe(context.Background(), chair)

	require.Error(t, err)
	assert.True(t, apperrors.IsUnavailable(err))
	assert.Equal(t, "llm: LLM model is not initialized.", apperrors.MessageOf(err))
}

// ============================================================================
// Gemini Tests
// ============================================================================

type fakeModels struct {
	model  string
	text   string
	temp   *float32
	err    error
	hasDDL bool
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.text = contents[0].Parts[0].Text
	f.temp = cfg.Temperature
	_, f.hasDDL = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: "A timeless piece."}}},
	}}}, nil
}

func TestGemini_Generate(t *testing.T) {
	fm := &fakeModels{}
	g := newGemini(fm, GeminiConfig{Model: "gemini-2.5-flash", Temperature: 0.7, Timeout: time.Second})

	out, err := g.Generate(context.Background(), "describe it")

	require.NoError(t, err)
	assert.Equal(t, "A timeless piece.", out)
	assert.Equal(t, "gemini-2.5-flash", fm.model)
	assert.Equal(t, "describe it", fm.text)
	require.NotNil(t, fm.temp)
	assert.InDelta(t, 0.7, *fm.temp, 1e-6)
	assert.True(t, fm.hasDDL)
	assert.Equal(t, "gemini-2.5-flash", g.Name())
}

func TestGemini_ErrorIsNotConnectionKind(t *testing.T) {
	g := newGemini(&fakeModels{err: errors.New("429 RESOURCE_EXHAUSTED")}, GeminiConfig{Model: "m"})

	_, err := g.Generate(context.Background(), "p")

	require.Error(t, err)
	assert.False(t, apperrors.IsUnavailable(err))
}

func TestNewGemini_RequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), GeminiConfig{Model: "m"})
	assert.Error(t, err)
}
