package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ExtractionMethod string

const (
	ExtractionMethodPrimary  ExtractionMethod = "primary"
	ExtractionMethodFallback ExtractionMethod = "fallback"
	ExtractionMethodHybrid   ExtractionMethod = "hybrid"
)

type FallbackReason string

const (
	FallbackReasonNoResult     FallbackReason = "no_result"
	FallbackReasonNoProps      FallbackReason = "no_props"
	FallbackReasonForwardRef   FallbackReason = "forward_ref_no_props"
	FallbackReasonHOCPattern   FallbackReason = "hoc_pattern"
	FallbackReasonStyledImport FallbackReason = "styled_pattern"
)

type StoryComplexity string

const (
	StoryComplexityMinimal  StoryComplexity = "minimal"
	StoryComplexityCommon   StoryComplexity = "common"
	StoryComplexityAdvanced StoryComplexity = "advanced"
)

// PropSpec is one extracted component prop. DefaultValue holds a parsed
// string/number/bool or raw text for anything more complex.
type PropSpec struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Description  string   `json:"description,omitempty"`
	DefaultValue any      `json:"defaultValue,omitempty"`
	Values       []string `json:"values,omitempty"`
	Required     bool     `json:"required"`
	IsChildren   bool     `json:"isChildren"`
}

type BaseLibraryRef struct {
	Name      string `json:"name"`
	Component string `json:"component,omitempty"`
}

type RadixPrimitiveRef struct {
	Primitive string `json:"primitive"`
	DocsURL   string `json:"docsUrl"`
}

type CompoundInfo struct {
	IsCompound    bool     `json:"isCompound"`
	RootComponent string   `json:"rootComponent"`
	SubComponents []string `json:"subComponents"`
}

type StoryExample struct {
	Title      string          `json:"title"`
	Code       string          `json:"code"`
	Complexity StoryComplexity `json:"complexity"`
}

// SubComponentSpec is the extracted shape of one member of a compound
// component.
type SubComponentSpec struct {
	Name                  string              `json:"name"`
	Props                 []PropSpec          `json:"props"`
	Description           string              `json:"description,omitempty"`
	RequiredInComposition bool                `json:"requiredInComposition"`
	RadixPrimitive        *RadixPrimitiveRef  `json:"radixPrimitive,omitempty"`
	Variants              map[string][]string `json:"variants,omitempty"`
	DefaultVariants       map[string]string   `json:"defaultVariants,omitempty"`
}

// ExtractedData is the structural half of a component's knowledge: what the
// source itself says, before any LLM involvement.
type ExtractedData struct {
	Props                []PropSpec          `json:"props"`
	Variants             map[string][]string `json:"variants"`
	DefaultVariants      map[string]string   `json:"defaultVariants"`
	NpmDependencies      map[string]string   `json:"npmDependencies"`
	InternalDependencies []string            `json:"internalDependencies"`
	AcceptsChildren      bool                `json:"acceptsChildren"`
	BaseLibrary          *BaseLibraryRef     `json:"baseLibrary,omitempty"`
	SourceDescription    string              `json:"sourceDescription,omitempty"`
	Files                []string            `json:"files"`
	Stories              []StoryExample      `json:"stories"`
	CompoundInfo         *CompoundInfo       `json:"compoundInfo,omitempty"`
	SubComponents        []SubComponentSpec  `json:"subComponents,omitempty"`
	RadixPrimitive       *RadixPrimitiveRef  `json:"radixPrimitive,omitempty"`
}

// EmptyExtractedData returns the zero payload produced when parsing fails.
func EmptyExtractedData() *ExtractedData {
	return &ExtractedData{
		Props:                []PropSpec{},
		Variants:             map[string][]string{},
		DefaultVariants:      map[string]string{},
		NpmDependencies:      map[string]string{},
		InternalDependencies: []string{},
		Files:                []string{},
		Stories:              []StoryExample{},
	}
}

// ExtractionDiagnostics reports how the extraction was obtained.
type ExtractionDiagnostics struct {
	Method            ExtractionMethod `json:"extractionMethod"`
	FallbackTriggered bool             `json:"fallbackTriggered"`
	FallbackReason    FallbackReason   `json:"fallbackReason,omitempty"`
}

type ExtractRequest struct {
	SourceCode      string     `json:"sourceCode" binding:"required"`
	Name            string     `json:"name" binding:"required"`
	Framework       Framework  `json:"framework,omitempty"`
	FilePath        string     `json:"filePath,omitempty"`
	Version         string     `json:"version,omitempty"`
	ExistingID      *uuid.UUID `json:"existingId,omitempty"`
	StoriesCode     string     `json:"storiesCode,omitempty"`
	StoriesFilePath string     `json:"storiesFilePath,omitempty"`
}

type ExtractResponse struct {
	ComponentID uuid.UUID             `json:"componentId"`
	Slug        string                `json:"slug"`
	Name        string                `json:"name"`
	Framework   Framework             `json:"framework"`
	SourceHash  string                `json:"sourceHash"`
	Extraction  datatypes.JSON        `json:"extraction"`
	Metadata    ExtractionDiagnostics `json:"metadata"`
}

type GenerateRequest struct {
	ComponentID uuid.UUID `json:"componentId" binding:"required"`
	Hints       string    `json:"hints,omitempty"`
}

type GenerateResponse struct {
	ComponentID uuid.UUID      `json:"componentId"`
	Generation  datatypes.JSON `json:"generation"`
	Provider    string         `json:"provider"`
	Model       string         `json:"model"`
}

type BuildRequest struct {
	ComponentID uuid.UUID `json:"componentId" binding:"required"`
}

type BuildResponse struct {
	ComponentID uuid.UUID      `json:"componentId"`
	Name        string         `json:"name"`
	Manifest    datatypes.JSON `json:"manifest"`
	SourceHash  string         `json:"sourceHash"`
	BuiltAt     string         `json:"builtAt"`
}
