package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/context-engine/models"
)

// toolOutput is the wire shape of a generate_component_metadata call. The
// two variant-description fields are RawMessage because Gemini returns them
// as JSON-encoded strings while Anthropic returns real objects.
type toolOutput struct {
	Description string `json:"description"`
	Guidance    *struct {
		WhenToUse         string   `json:"whenToUse"`
		WhenNotToUse      string   `json:"whenNotToUse"`
		Accessibility     string   `json:"accessibility"`
		Patterns          []string `json:"patterns"`
		RelatedComponents []string `json:"relatedComponents"`
	} `json:"guidance"`
	Examples *struct {
		Minimal  *models.ExampleSpec  `json:"minimal"`
		Common   []models.ExampleSpec `json:"common"`
		Advanced []models.ExampleSpec `json:"advanced"`
	} `json:"examples"`
	VariantDescriptions             json.RawMessage `json:"variantDescriptions"`
	SubComponentVariantDescriptions json.RawMessage `json:"subComponentVariantDescriptions"`
}

const (
	minWhenToUse    = 20
	minWhenNotToUse = 10
)

// metaFromToolArgs validates and repairs a tool call payload. Out-of-bounds
// descriptions are clamped or replaced rather than failed; a missing
// guidance object is a hard error because nothing sensible can be composed
// for it.
func metaFromToolArgs(raw []byte, req MetaRequest, minDesc, maxDesc int) (*models.ComponentMeta, error) {
	var out toolOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("tool output is not valid JSON: %w", err)
	}
	if out.Guidance == nil {
		return nil, fmt.Errorf("tool output missing guidance object")
	}

	desc := strings.TrimSpace(out.Description)
	switch {
	case len([]rune(desc)) < minDesc:
		desc = defaultDescription(req, minDesc)
	case len([]rune(desc)) > maxDesc:
		desc = string([]rune(desc)[:maxDesc])
	}

	whenToUse := strings.TrimSpace(out.Guidance.WhenToUse)
	if len([]rune(whenToUse)) < minWhenToUse {
		whenToUse = fmt.Sprintf("Use %s when the interface needs what it provides: %s", req.Name, clampRunes(desc, 120))
	}
	whenNotToUse := strings.TrimSpace(out.Guidance.WhenNotToUse)
	if len([]rune(whenNotToUse)) < minWhenNotToUse {
		whenNotToUse = fmt.Sprintf("Avoid %s when a simpler element already covers the need.", req.Name)
	}

	related := out.Guidance.RelatedComponents
	if related == nil {
		related = []string{}
	}

	ai := models.MetaAI{
		SemanticDescription:             desc,
		WhenToUse:                       whenToUse,
		WhenNotToUse:                    whenNotToUse,
		Patterns:                        models.FilterPatterns(out.Guidance.Patterns),
		RelatedComponents:               related,
		A11yNotes:                       strings.TrimSpace(out.Guidance.Accessibility),
		VariantDescriptions:             parseVariantDescriptions(out.VariantDescriptions),
		SubComponentVariantDescriptions: parseSubVariantDescriptions(out.SubComponentVariantDescriptions),
	}

	if out.Examples != nil {
		ex := &models.ManifestExamples{
			Minimal:  validExample(out.Examples.Minimal),
			Common:   validExamples(out.Examples.Common),
			Advanced: validExamples(out.Examples.Advanced),
		}
		if ex.Minimal != nil || len(ex.Common) > 0 || len(ex.Advanced) > 0 {
			ai.Examples = ex
		}
	}

	return &models.ComponentMeta{
		Name:        req.Name,
		Description: desc,
		AI:          ai,
	}, nil
}

// defaultDescription composes a description from the identity and the
// extracted structure when the model's answer is unusable.
func defaultDescription(req MetaRequest, minLen int) string {
	ex := req.Extracted
	parts := []string{fmt.Sprintf("%s is a %s UI component.", req.Name, req.Framework)}
	if n := len(ex.Props); n > 0 {
		parts = append(parts, fmt.Sprintf("It exposes %d props.", n))
	}
	if len(ex.Variants) > 0 {
		parts = append(parts, fmt.Sprintf("Configurable variants: %s.", strings.Join(sortedKeys(ex.Variants), ", ")))
	}
	if ex.CompoundInfo != nil && ex.CompoundInfo.IsCompound {
		parts = append(parts, fmt.Sprintf("It is a compound component with %d sub-components.", len(ex.SubComponents)))
	}
	if ex.BaseLibrary != nil {
		parts = append(parts, fmt.Sprintf("Built on %s.", ex.BaseLibrary.Name))
	}
	s := strings.Join(parts, " ")
	if len([]rune(s)) < minLen {
		s += " It is part of the organization's shared component library."
	}
	return s
}

// parseVariantDescriptions accepts either a JSON object or a JSON string
// containing an encoded object. Anything else is dropped.
func parseVariantDescriptions(raw json.RawMessage) map[string]map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]map[string]string
	if err := json.Unmarshal(raw, &m); err == nil {
		return emptyToNil(m)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		if err := json.Unmarshal([]byte(s), &m); err == nil {
			return emptyToNil(m)
		}
	}
	return nil
}

func parseSubVariantDescriptions(raw json.RawMessage) map[string]map[string]map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]map[string]map[string]string
	if err := json.Unmarshal(raw, &m); err == nil {
		if len(m) == 0 {
			return nil
		}
		return m
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		if err := json.Unmarshal([]byte(s), &m); err == nil && len(m) > 0 {
			return m
		}
	}
	return nil
}

func emptyToNil(m map[string]map[string]string) map[string]map[string]string {
	if len(m) == 0 {
		return nil
	}
	return m
}

func validExample(e *models.ExampleSpec) *models.ExampleSpec {
	if e == nil || strings.TrimSpace(e.Title) == "" || strings.TrimSpace(e.Code) == "" {
		return nil
	}
	return e
}

func validExamples(in []models.ExampleSpec) []models.ExampleSpec {
	var out []models.ExampleSpec
	for i := range in {
		if e := validExample(&in[i]); e != nil {
			out = append(out, *e)
		}
	}
	return out
}

func clampRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
