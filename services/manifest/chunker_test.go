package manifest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/context-engine/models"
)

func fullManifest() *models.AIManifest {
	return &models.AIManifest{
		Name:        "Card",
		Slug:        "card-react-a1b2c3d4",
		Description: "A surface that groups related content and actions.",
		ImportStatement: models.ImportStatement{
			Primary:  "import { Card, CardHeader } from '@/components/ui'",
			TypeOnly: "import type { CardProps } from '@/components/ui'",
		},
		Props: &models.CategorizedProps{
			Variants: []models.ManifestProp{{
				Name: "padding", Type: "string", Values: []string{"none", "md"},
				Default:           "md",
				ValueDescriptions: map[string]string{"none": "Flush content."},
			}},
			Behaviors: []models.ManifestProp{{Name: "hoverable", Type: "boolean", Description: "Elevates on hover."}},
		},
		Examples: &models.ManifestExamples{
			Minimal: &models.ExampleSpec{Title: "Basic", Code: "<Card>Content</Card>"},
			Common:  []models.ExampleSpec{{Title: "With header", Code: "<Card><CardHeader /></Card>"}},
		},
		Guidance: &models.ManifestGuidance{
			WhenToUse:         "Use to group related information on a page.",
			WhenNotToUse:      "Not as a page layout root.",
			Accessibility:     "Content order must make sense to screen readers.",
			Patterns:          []string{"surface", "data-display"},
			RelatedComponents: []string{"Panel"},
		},
		Dependencies: &models.ManifestDependencies{Internal: []string{"cn"}},
		BaseLibrary:  &models.BaseLibraryRef{Name: "radix-ui"},
		SubComponents: []models.ManifestSubComponent{{
			Name:                  "CardHeader",
			DataSlot:              "card-header",
			RequiredInComposition: true,
			Description:           "Top region.",
			Props: &models.CategorizedProps{
				Variants: []models.ManifestProp{{Name: "align", Type: "string"}},
			},
		}},
	}
}

func TestChunkManifestFull(t *testing.T) {
	chunks := ChunkManifest(fullManifest())
	require.Len(t, chunks, 7)

	wantOrder := []models.ChunkType{
		models.ChunkTypeDescription,
		models.ChunkTypeImport,
		models.ChunkTypeProps,
		models.ChunkTypeComposition,
		models.ChunkTypeExamples,
		models.ChunkTypePatterns,
		models.ChunkTypeGuidance,
	}
	for i, chunk := range chunks {
		assert.Equal(t, wantOrder[i], chunk.Type)
		assert.Equal(t, i, chunk.Index)
		assert.NotEmpty(t, chunk.Content)
	}
}

func TestChunkContents(t *testing.T) {
	chunks := ChunkManifest(fullManifest())
	byType := map[models.ChunkType]string{}
	for _, c := range chunks {
		byType[c.Type] = c.Content
	}

	t.Run("description names the component and base library", func(t *testing.T) {
		assert.Contains(t, byType[models.ChunkTypeDescription], "Component: Card")
		assert.Contains(t, byType[models.ChunkTypeDescription], "Built on radix-ui")
	})

	t.Run("props include value descriptions", func(t *testing.T) {
		content := byType[models.ChunkTypeProps]
		assert.Contains(t, content, "padding (string, default: md)")
		assert.Contains(t, content, "* none: Flush content.")
		assert.Contains(t, content, "hoverable (boolean): Elevates on hover.")
	})

	t.Run("composition marks required subs and data slots", func(t *testing.T) {
		content := byType[models.ChunkTypeComposition]
		assert.Contains(t, content, "CardHeader (REQUIRED)")
		assert.Contains(t, content, "[data-slot: card-header]")
		assert.Contains(t, content, "Props: align")
	})

	t.Run("examples carry labels and code", func(t *testing.T) {
		content := byType[models.ChunkTypeExamples]
		assert.Contains(t, content, "Minimal - Basic:")
		assert.Contains(t, content, "<Card>Content</Card>")
		assert.Contains(t, content, "<Card><CardHeader /></Card>")
		assert.Contains(t, content, "Common - With header:")
	})

	t.Run("patterns list tags and relations", func(t *testing.T) {
		content := byType[models.ChunkTypePatterns]
		assert.Contains(t, content, "Patterns: surface, data-display")
		assert.Contains(t, content, "Related components: Panel")
		assert.Contains(t, content, "Internal dependencies: cn")
	})

	t.Run("guidance keeps all three notes", func(t *testing.T) {
		content := byType[models.ChunkTypeGuidance]
		assert.Contains(t, content, "When to use:")
		assert.Contains(t, content, "When not to use:")
		assert.Contains(t, content, "Accessibility:")
	})
}

func TestChunkManifestSparse(t *testing.T) {
	m := &models.AIManifest{
		Name:        "Spacer",
		Slug:        "spacer",
		Description: "Vertical whitespace.",
	}
	chunks := ChunkManifest(m)

	require.Len(t, chunks, 1)
	assert.Equal(t, models.ChunkTypeDescription, chunks[0].Type)
	assert.Equal(t, 0, chunks[0].Index)
}

func TestChunkTruncation(t *testing.T) {
	m := fullManifest()
	m.Description = strings.Repeat("very long description ", 400)

	chunks := ChunkManifest(m)
	desc := chunks[0].Content

	assert.Len(t, []rune(desc), maxChunkChars)
	assert.True(t, strings.HasSuffix(desc, "..."))
}
