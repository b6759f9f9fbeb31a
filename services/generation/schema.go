package generation

import (
	"google.golang.org/genai"

	"github.com/context-engine/models"
)

// ToolName is the single function the model is forced to call.
const ToolName = "generate_component_metadata"

const toolDescription = "Produce semantic metadata for a UI component: what it is, when to use it, accessibility notes, and per-variant value descriptions."

func patternEnum() []string {
	patterns := models.KnownPatterns()
	out := make([]string, len(patterns))
	for i, p := range patterns {
		out[i] = string(p)
	}
	return out
}

func exampleSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":       map[string]any{"type": "string"},
			"code":        map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
		},
		"required": []string{"title", "code"},
	}
}

// anthropicToolSchema is the JSON-schema form of the tool contract.
func anthropicToolSchema(minDesc, maxDesc int) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"description": map[string]any{
				"type":        "string",
				"minLength":   minDesc,
				"maxLength":   maxDesc,
				"description": "Semantic description of the component: purpose, behavior, and visual role.",
			},
			"guidance": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"whenToUse":     map[string]any{"type": "string", "minLength": 20},
					"whenNotToUse":  map[string]any{"type": "string", "minLength": 10},
					"accessibility": map[string]any{"type": "string"},
					"patterns": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string", "enum": patternEnum()},
					},
					"relatedComponents": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
				},
				"required": []string{"whenToUse", "whenNotToUse", "accessibility", "patterns", "relatedComponents"},
			},
			"examples": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"minimal":  exampleSchema(),
					"common":   map[string]any{"type": "array", "items": exampleSchema()},
					"advanced": map[string]any{"type": "array", "items": exampleSchema()},
				},
				"required": []string{"minimal", "common"},
			},
			"variantDescriptions": map[string]any{
				"type":        "object",
				"description": "Map of variant name to a map of value name to a short description.",
				"additionalProperties": map[string]any{
					"type":                 "object",
					"additionalProperties": map[string]any{"type": "string"},
				},
			},
			"subComponentVariantDescriptions": map[string]any{
				"type":        "object",
				"description": "Map of sub-component name to its variant description map.",
				"additionalProperties": map[string]any{
					"type": "object",
					"additionalProperties": map[string]any{
						"type":                 "object",
						"additionalProperties": map[string]any{"type": "string"},
					},
				},
			},
		},
		"required": []string{"description", "guidance"},
	}
}

// geminiToolSchema mirrors the contract in genai's schema dialect. Gemini
// function declarations cannot express open-keyed maps, so the two
// variant-description fields are declared as JSON-encoded strings; the
// validator parses them back.
func geminiToolSchema() *genai.Schema {
	example := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":       {Type: genai.TypeString},
			"code":        {Type: genai.TypeString},
			"description": {Type: genai.TypeString},
		},
		Required: []string{"title", "code"},
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"description": {
				Type:        genai.TypeString,
				Description: "Semantic description of the component: purpose, behavior, and visual role.",
			},
			"guidance": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"whenToUse":     {Type: genai.TypeString},
					"whenNotToUse":  {Type: genai.TypeString},
					"accessibility": {Type: genai.TypeString},
					"patterns": {
						Type:  genai.TypeArray,
						Items: &genai.Schema{Type: genai.TypeString, Enum: patternEnum()},
					},
					"relatedComponents": {
						Type:  genai.TypeArray,
						Items: &genai.Schema{Type: genai.TypeString},
					},
				},
				Required: []string{"whenToUse", "whenNotToUse", "accessibility", "patterns", "relatedComponents"},
			},
			"examples": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"minimal":  example,
					"common":   {Type: genai.TypeArray, Items: example},
					"advanced": {Type: genai.TypeArray, Items: example},
				},
				Required: []string{"minimal", "common"},
			},
			"variantDescriptions": {
				Type:        genai.TypeString,
				Description: "JSON object encoded as a string: {variantName: {valueName: description}}.",
			},
			"subComponentVariantDescriptions": {
				Type:        genai.TypeString,
				Description: "JSON object encoded as a string: {subComponent: {variantName: {valueName: description}}}.",
			},
		},
		Required: []string{"description", "guidance"},
	}
}
