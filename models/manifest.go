package models

// PatternTag values form the closed vocabulary for guidance.patterns.
// Generated metadata is filtered against this set; unknown tags are dropped.
type PatternTag string

const (
	PatternFormElement        PatternTag = "form-element"
	PatternInteractiveControl PatternTag = "interactive-control"
	PatternSurface            PatternTag = "surface"
	PatternDisclosure         PatternTag = "disclosure"
	PatternFeedback           PatternTag = "feedback"
	PatternNavigation         PatternTag = "navigation"
	PatternDataDisplay        PatternTag = "data-display"
	PatternLayout             PatternTag = "layout"
	PatternOverlay            PatternTag = "overlay"
	PatternInput              PatternTag = "input"
	PatternAction             PatternTag = "action"
)

func KnownPatterns() []PatternTag {
	return []PatternTag{
		PatternFormElement, PatternInteractiveControl, PatternSurface,
		PatternDisclosure, PatternFeedback, PatternNavigation,
		PatternDataDisplay, PatternLayout, PatternOverlay,
		PatternInput, PatternAction,
	}
}

// FilterPatterns keeps only tags from the known vocabulary, preserving
// input order and dropping duplicates.
func FilterPatterns(tags []string) []string {
	known := map[string]bool{}
	for _, p := range KnownPatterns() {
		known[string(p)] = true
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if known[t] && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

type ExampleSpec struct {
	Title       string `json:"title"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

type ManifestExamples struct {
	Minimal  *ExampleSpec  `json:"minimal,omitempty"`
	Common   []ExampleSpec `json:"common,omitempty"`
	Advanced []ExampleSpec `json:"advanced,omitempty"`
}

// MetaAI is the semantic half produced by the generator.
type MetaAI struct {
	SemanticDescription             string                                  `json:"semanticDescription"`
	WhenToUse                       string                                  `json:"whenToUse"`
	WhenNotToUse                    string                                  `json:"whenNotToUse"`
	Patterns                        []string                                `json:"patterns"`
	Examples                        *ManifestExamples                       `json:"examples,omitempty"`
	RelatedComponents               []string                                `json:"relatedComponents"`
	A11yNotes                       string                                  `json:"a11yNotes"`
	VariantDescriptions             map[string]map[string]string            `json:"variantDescriptions,omitempty"`
	SubComponentVariantDescriptions map[string]map[string]map[string]string `json:"subComponentVariantDescriptions,omitempty"`
}

type ComponentMeta struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	AI          MetaAI `json:"ai"`
}

// ManifestProp is a prop as consumers see it, after categorization and
// variant normalization.
type ManifestProp struct {
	Name              string            `json:"name"`
	Type              string            `json:"type"`
	Required          bool              `json:"required,omitempty"`
	Default           any               `json:"default,omitempty"`
	Description       string            `json:"description,omitempty"`
	Values            []string          `json:"values,omitempty"`
	ValueDescriptions map[string]string `json:"valueDescriptions,omitempty"`
}

// CategorizedProps groups props by role. Empty groups are omitted from the
// serialized manifest.
type CategorizedProps struct {
	Variants  []ManifestProp `json:"variants,omitempty"`
	Behaviors []ManifestProp `json:"behaviors,omitempty"`
	Events    []ManifestProp `json:"events,omitempty"`
	Slots     []ManifestProp `json:"slots,omitempty"`
	Other     []ManifestProp `json:"other,omitempty"`
}

func (p *CategorizedProps) IsEmpty() bool {
	return p == nil ||
		(len(p.Variants) == 0 && len(p.Behaviors) == 0 && len(p.Events) == 0 &&
			len(p.Slots) == 0 && len(p.Other) == 0)
}

type ImportStatement struct {
	Primary  string `json:"primary"`
	TypeOnly string `json:"typeOnly"`
	Subpath  string `json:"subpath,omitempty"`
}

type ManifestChildren struct {
	Accepted    bool   `json:"accepted"`
	Description string `json:"description,omitempty"`
}

type ManifestGuidance struct {
	WhenToUse         string   `json:"whenToUse,omitempty"`
	WhenNotToUse      string   `json:"whenNotToUse,omitempty"`
	Accessibility     string   `json:"accessibility,omitempty"`
	Patterns          []string `json:"patterns,omitempty"`
	RelatedComponents []string `json:"relatedComponents,omitempty"`
}

type ManifestDependencies struct {
	Npm      map[string]string `json:"npm,omitempty"`
	Internal []string          `json:"internal,omitempty"`
}

type ManifestSubComponent struct {
	Name                  string             `json:"name"`
	Description           string             `json:"description,omitempty"`
	DataSlot              string             `json:"dataSlot,omitempty"`
	RequiredInComposition bool               `json:"requiredInComposition,omitempty"`
	Props                 *CategorizedProps  `json:"props,omitempty"`
	RadixPrimitive        *RadixPrimitiveRef `json:"radixPrimitive,omitempty"`
}

// AIManifest is the merged, consumer-visible view of one component.
type AIManifest struct {
	Name            string                 `json:"name"`
	Slug            string                 `json:"slug"`
	Description     string                 `json:"description"`
	ImportStatement ImportStatement        `json:"importStatement"`
	Children        *ManifestChildren      `json:"children,omitempty"`
	Props           *CategorizedProps      `json:"props,omitempty"`
	Examples        *ManifestExamples      `json:"examples,omitempty"`
	Guidance        *ManifestGuidance      `json:"guidance,omitempty"`
	Dependencies    *ManifestDependencies  `json:"dependencies,omitempty"`
	BaseLibrary     *BaseLibraryRef        `json:"baseLibrary,omitempty"`
	SubComponents   []ManifestSubComponent `json:"subComponents,omitempty"`
	RadixPrimitive  *RadixPrimitiveRef     `json:"radixPrimitive,omitempty"`
}

// ManifestChunk is one chunker output row, pre-embedding.
type ManifestChunk struct {
	Type    ChunkType `json:"type"`
	Content string    `json:"content"`
	Index   int       `json:"index"`
}
