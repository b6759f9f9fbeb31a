package manifest

import (
	"fmt"
	"strings"

	"github.com/context-engine/models"
)

// maxChunkChars bounds each chunk before embedding. Oversized content is cut
// with a visible ellipsis so truncation is detectable downstream.
const maxChunkChars = 4000

// ChunkManifest slices a manifest into embeddable text chunks, one angle of
// the component per chunk. Sections without content produce no chunk; index
// reflects emission order.
func ChunkManifest(m *models.AIManifest) []models.ManifestChunk {
	var chunks []models.ManifestChunk
	add := func(t models.ChunkType, content string) {
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		chunks = append(chunks, models.ManifestChunk{
			Type:    t,
			Content: truncateChunk(content),
			Index:   len(chunks),
		})
	}

	add(models.ChunkTypeDescription, descriptionChunk(m))
	add(models.ChunkTypeImport, importChunk(m))
	add(models.ChunkTypeProps, propsChunk(m))
	add(models.ChunkTypeComposition, compositionChunk(m))
	add(models.ChunkTypeExamples, examplesChunk(m))
	add(models.ChunkTypePatterns, patternsChunk(m))
	add(models.ChunkTypeGuidance, guidanceChunk(m))

	return chunks
}

func descriptionChunk(m *models.AIManifest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Component: %s\n%s", m.Name, m.Description)
	if m.BaseLibrary != nil {
		fmt.Fprintf(&b, "\nBuilt on %s", m.BaseLibrary.Name)
		if m.BaseLibrary.Component != "" {
			fmt.Fprintf(&b, " (%s)", m.BaseLibrary.Component)
		}
	}
	if m.RadixPrimitive != nil {
		fmt.Fprintf(&b, "\nRadix primitive: %s %s", m.RadixPrimitive.Primitive, m.RadixPrimitive.DocsURL)
	}
	return b.String()
}

func importChunk(m *models.AIManifest) string {
	if m.ImportStatement.Primary == "" {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Import: %s", m.ImportStatement.Primary)
	if m.ImportStatement.TypeOnly != "" {
		fmt.Fprintf(&b, "\nType import: %s", m.ImportStatement.TypeOnly)
	}
	return b.String()
}

func propsChunk(m *models.AIManifest) string {
	if m.Props.IsEmpty() {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Props of %s:\n", m.Name)
	writePropGroup(&b, "Variants", m.Props.Variants)
	writePropGroup(&b, "Behaviors", m.Props.Behaviors)
	writePropGroup(&b, "Events", m.Props.Events)
	writePropGroup(&b, "Slots", m.Props.Slots)
	writePropGroup(&b, "Other", m.Props.Other)
	return b.String()
}

func writePropGroup(b *strings.Builder, label string, props []models.ManifestProp) {
	if len(props) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for _, p := range props {
		fmt.Fprintf(b, "- %s (%s", p.Name, p.Type)
		if p.Default != nil {
			fmt.Fprintf(b, ", default: %v", p.Default)
		}
		b.WriteString(")")
		if p.Description != "" {
			fmt.Fprintf(b, ": %s", p.Description)
		}
		b.WriteString("\n")
		for _, v := range p.Values {
			if desc, ok := p.ValueDescriptions[v]; ok {
				fmt.Fprintf(b, "  * %s: %s\n", v, desc)
			}
		}
	}
}

func compositionChunk(m *models.AIManifest) string {
	if len(m.SubComponents) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s is a compound component:\n", m.Name)
	for _, sub := range m.SubComponents {
		fmt.Fprintf(&b, "- %s", sub.Name)
		if sub.RequiredInComposition {
			b.WriteString(" (REQUIRED)")
		}
		if sub.DataSlot != "" {
			fmt.Fprintf(&b, " [data-slot: %s]", sub.DataSlot)
		}
		if sub.Description != "" {
			fmt.Fprintf(&b, ": %s", sub.Description)
		}
		if names := subPropNames(sub.Props); len(names) > 0 {
			fmt.Fprintf(&b, ". Props: %s", strings.Join(names, ", "))
		}
		if sub.RadixPrimitive != nil {
			fmt.Fprintf(&b, ". Radix: %s", sub.RadixPrimitive.Primitive)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func subPropNames(cat *models.CategorizedProps) []string {
	if cat.IsEmpty() {
		return nil
	}
	var names []string
	for _, group := range [][]models.ManifestProp{cat.Variants, cat.Behaviors, cat.Events, cat.Slots, cat.Other} {
		for _, p := range group {
			names = append(names, p.Name)
		}
	}
	return names
}

func examplesChunk(m *models.AIManifest) string {
	ex := m.Examples
	if ex == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Usage examples for %s:\n", m.Name)
	if ex.Minimal != nil {
		writeExample(&b, "Minimal", *ex.Minimal)
	}
	for i, e := range ex.Common {
		if i >= maxCommonExamples {
			break
		}
		writeExample(&b, "Common", e)
	}
	for i, e := range ex.Advanced {
		if i >= maxAdvancedExamples {
			break
		}
		writeExample(&b, "Advanced", e)
	}
	return b.String()
}

func writeExample(b *strings.Builder, label string, e models.ExampleSpec) {
	fmt.Fprintf(b, "%s - %s:\n%s\n", label, e.Title, e.Code)
}

func patternsChunk(m *models.AIManifest) string {
	var lines []string
	if m.BaseLibrary != nil {
		lines = append(lines, "Base library: "+m.BaseLibrary.Name)
	}
	if len(m.SubComponents) > 0 {
		names := make([]string, len(m.SubComponents))
		for i, sub := range m.SubComponents {
			names[i] = sub.Name
		}
		lines = append(lines, "Sub-components: "+strings.Join(names, ", "))
	}
	if m.Dependencies != nil && len(m.Dependencies.Internal) > 0 {
		lines = append(lines, "Internal dependencies: "+strings.Join(m.Dependencies.Internal, ", "))
	}
	if m.Guidance != nil {
		if len(m.Guidance.Patterns) > 0 {
			lines = append(lines, "Patterns: "+strings.Join(m.Guidance.Patterns, ", "))
		}
		if len(m.Guidance.RelatedComponents) > 0 {
			lines = append(lines, "Related components: "+strings.Join(m.Guidance.RelatedComponents, ", "))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return fmt.Sprintf("%s patterns:\n%s", m.Name, strings.Join(lines, "\n"))
}

func guidanceChunk(m *models.AIManifest) string {
	g := m.Guidance
	if g == nil {
		return ""
	}
	var lines []string
	if g.WhenToUse != "" {
		lines = append(lines, "When to use: "+g.WhenToUse)
	}
	if g.WhenNotToUse != "" {
		lines = append(lines, "When not to use: "+g.WhenNotToUse)
	}
	if g.Accessibility != "" {
		lines = append(lines, "Accessibility: "+g.Accessibility)
	}
	if len(lines) == 0 {
		return ""
	}
	return fmt.Sprintf("Guidance for %s:\n%s", m.Name, strings.Join(lines, "\n"))
}

func truncateChunk(s string) string {
	r := []rune(s)
	if len(r) <= maxChunkChars {
		return s
	}
	return string(r[:maxChunkChars-3]) + "..."
}
