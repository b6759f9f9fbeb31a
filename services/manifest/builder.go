package manifest

import (
	"regexp"
	"sort"
	"strings"

	"github.com/context-engine/models"
)

// Builder assembles AI manifests from the structural extraction and the
// generated metadata. It holds no state beyond the fallback import package,
// so one instance serves every org.
type Builder struct {
	defaultPackage string
}

func NewBuilder(defaultPackage string) *Builder {
	if defaultPackage == "" {
		defaultPackage = "@/components/ui"
	}
	return &Builder{defaultPackage: defaultPackage}
}

// Input is everything a manifest derives from. AvailableComponents, when
// non-nil, restricts guidance.relatedComponents to names that actually exist
// in the org.
type Input struct {
	Name                string
	Slug                string
	Extracted           *models.ExtractedData
	Meta                *models.ComponentMeta
	AvailableComponents []string
}

var distributionPackage = regexp.MustCompile(`^@[a-z-]+/(react|components|ui)$`)

// Build runs the full assembly. Both payloads must be present; the processor
// enforces that before calling.
func (b *Builder) Build(in Input) *models.AIManifest {
	ex := in.Extracted
	ai := in.Meta.AI

	m := &models.AIManifest{
		Name:        in.Name,
		Slug:        in.Slug,
		Description: in.Meta.Description,
	}

	m.Props = nilIfEmpty(buildProps(ex.Props, ex.Variants, ex.DefaultVariants, ai.VariantDescriptions))
	m.Examples = b.buildExamples(ex.Stories, ai.Examples)
	m.ImportStatement = b.buildImport(in.Name, ex)

	if ex.AcceptsChildren {
		m.Children = &models.ManifestChildren{
			Accepted:    true,
			Description: childrenDescription(ex.Props),
		}
	}

	if g := buildGuidance(ai, in.AvailableComponents); g != nil {
		m.Guidance = g
	}

	if len(ex.NpmDependencies) > 0 || len(ex.InternalDependencies) > 0 {
		m.Dependencies = &models.ManifestDependencies{
			Npm:      ex.NpmDependencies,
			Internal: ex.InternalDependencies,
		}
	}

	m.BaseLibrary = ex.BaseLibrary
	m.RadixPrimitive = ex.RadixPrimitive

	for _, sub := range ex.SubComponents {
		m.SubComponents = append(m.SubComponents, buildSubComponent(sub, ai.SubComponentVariantDescriptions[sub.Name]))
	}

	return m
}

// buildProps runs the three-phase prop pipeline: categorize, normalize
// variants, enrich with value descriptions.
func buildProps(props []models.PropSpec, variants map[string][]string, defaults map[string]string, valueDescs map[string]map[string]string) *models.CategorizedProps {
	cat := categorizeProps(props, variants)
	normalizeVariants(cat, variants, defaults)
	enrichVariants(cat, valueDescs)
	return cat
}

// categorizeProps assigns each prop to exactly one group. Precedence is
// fixed: events > slots > variants > behaviors > other.
func categorizeProps(props []models.PropSpec, variants map[string][]string) *models.CategorizedProps {
	cat := &models.CategorizedProps{}
	for _, p := range props {
		mp := toManifestProp(p)
		switch {
		case isEventProp(p):
			cat.Events = append(cat.Events, mp)
		case isSlotProp(p):
			cat.Slots = append(cat.Slots, mp)
		case isVariantProp(p, variants):
			cat.Variants = append(cat.Variants, mp)
		case isBehaviorProp(p):
			cat.Behaviors = append(cat.Behaviors, mp)
		default:
			cat.Other = append(cat.Other, mp)
		}
	}
	return cat
}

var eventName = regexp.MustCompile(`^on[A-Z]`)

func isEventProp(p models.PropSpec) bool {
	return eventName.MatchString(p.Name) || strings.Contains(p.Type, "=>") || strings.HasPrefix(p.Type, "(")
}

func isSlotProp(p models.PropSpec) bool {
	if p.IsChildren {
		return true
	}
	for _, marker := range []string{"ReactNode", "ReactElement", "JSX.Element"} {
		if strings.Contains(p.Type, marker) {
			return true
		}
	}
	return false
}

func isVariantProp(p models.PropSpec, variants map[string][]string) bool {
	if len(p.Values) > 0 {
		return true
	}
	_, ok := variants[p.Name]
	return ok
}

func isBehaviorProp(p models.PropSpec) bool {
	return p.Type == "boolean" || p.Type == "bool"
}

func toManifestProp(p models.PropSpec) models.ManifestProp {
	return models.ManifestProp{
		Name:        p.Name,
		Type:        p.Type,
		Required:    p.Required,
		Default:     p.DefaultValue,
		Description: p.Description,
		Values:      p.Values,
	}
}

// normalizeVariants guarantees every extracted variant appears in the
// variants group with canonical shape, whether or not the prop scan saw it.
func normalizeVariants(cat *models.CategorizedProps, variants map[string][]string, defaults map[string]string) {
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		values := variants[name]
		idx := -1
		for i := range cat.Variants {
			if cat.Variants[i].Name == name {
				idx = i
				break
			}
		}
		if idx == -1 {
			cat.Variants = append(cat.Variants, models.ManifestProp{Name: name})
			idx = len(cat.Variants) - 1
		}
		v := &cat.Variants[idx]
		v.Type = "string"
		v.Values = values
		v.Required = false
		if def, ok := defaults[name]; ok {
			v.Default = def
		}
	}
}

func enrichVariants(cat *models.CategorizedProps, valueDescs map[string]map[string]string) {
	if len(valueDescs) == 0 {
		return
	}
	for i := range cat.Variants {
		if vd, ok := valueDescs[cat.Variants[i].Name]; ok && len(vd) > 0 {
			cat.Variants[i].ValueDescriptions = vd
		}
	}
}

const (
	maxCommonExamples   = 8
	maxAdvancedExamples = 3
)

// buildExamples prefers extracted stories over generated examples; a story
// is real code while a generated example is a guess.
func (b *Builder) buildExamples(stories []models.StoryExample, generated *models.ManifestExamples) *models.ManifestExamples {
	if len(stories) == 0 {
		if generated == nil {
			return nil
		}
		out := &models.ManifestExamples{
			Minimal:  generated.Minimal,
			Common:   capExamples(generated.Common, maxCommonExamples),
			Advanced: capExamples(generated.Advanced, maxAdvancedExamples),
		}
		if out.Minimal == nil && len(out.Common) == 0 && len(out.Advanced) == 0 {
			return nil
		}
		return out
	}

	minimalIdx := 0
	for i, s := range stories {
		if s.Complexity == models.StoryComplexityMinimal {
			minimalIdx = i
			break
		}
	}

	out := &models.ManifestExamples{
		Minimal: &models.ExampleSpec{Title: stories[minimalIdx].Title, Code: stories[minimalIdx].Code},
	}
	for i, s := range stories {
		if i == minimalIdx {
			continue
		}
		switch s.Complexity {
		case models.StoryComplexityAdvanced:
			if len(out.Advanced) < maxAdvancedExamples {
				out.Advanced = append(out.Advanced, models.ExampleSpec{Title: s.Title, Code: s.Code})
			}
		default:
			if len(out.Common) < maxCommonExamples {
				out.Common = append(out.Common, models.ExampleSpec{Title: s.Title, Code: s.Code})
			}
		}
	}
	return out
}

func capExamples(in []models.ExampleSpec, max int) []models.ExampleSpec {
	if len(in) > max {
		return in[:max]
	}
	return in
}

// buildImport picks the distribution package and renders the statements.
// Compound roots import the whole family in one statement.
func (b *Builder) buildImport(name string, ex *models.ExtractedData) models.ImportStatement {
	pkg := b.choosePackage(ex.NpmDependencies)
	exported := models.Pascal(name)

	names := []string{exported}
	if ex.CompoundInfo != nil && ex.CompoundInfo.IsCompound {
		for _, sub := range ex.SubComponents {
			names = append(names, sub.Name)
		}
	}

	return models.ImportStatement{
		Primary:  "import { " + strings.Join(names, ", ") + " } from '" + pkg + "'",
		TypeOnly: "import type { " + exported + "Props } from '" + pkg + "'",
	}
}

// choosePackage walks dependencies in sorted order and returns the first
// that looks like the library's own distribution package.
func (b *Builder) choosePackage(npm map[string]string) string {
	names := make([]string, 0, len(npm))
	for name := range npm {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if distributionPackage.MatchString(name) || strings.Contains(name, "design-system") {
			return name
		}
	}
	return b.defaultPackage
}

func buildGuidance(ai models.MetaAI, available []string) *models.ManifestGuidance {
	related := ai.RelatedComponents
	if available != nil {
		known := make(map[string]bool, len(available))
		for _, name := range available {
			known[name] = true
		}
		filtered := make([]string, 0, len(related))
		for _, name := range related {
			if known[name] {
				filtered = append(filtered, name)
			}
		}
		related = filtered
	}

	g := &models.ManifestGuidance{
		WhenToUse:         ai.WhenToUse,
		WhenNotToUse:      ai.WhenNotToUse,
		Accessibility:     ai.A11yNotes,
		Patterns:          ai.Patterns,
		RelatedComponents: related,
	}
	if g.WhenToUse == "" && g.WhenNotToUse == "" && g.Accessibility == "" &&
		len(g.Patterns) == 0 && len(g.RelatedComponents) == 0 {
		return nil
	}
	return g
}

func buildSubComponent(sub models.SubComponentSpec, valueDescs map[string]map[string]string) models.ManifestSubComponent {
	return models.ManifestSubComponent{
		Name:                  sub.Name,
		Description:           sub.Description,
		DataSlot:              models.Kebab(sub.Name),
		RequiredInComposition: sub.RequiredInComposition,
		Props:                 nilIfEmpty(buildProps(sub.Props, sub.Variants, sub.DefaultVariants, valueDescs)),
		RadixPrimitive:        sub.RadixPrimitive,
	}
}

func childrenDescription(props []models.PropSpec) string {
	for _, p := range props {
		if p.IsChildren {
			return p.Description
		}
	}
	return ""
}

func nilIfEmpty(cat *models.CategorizedProps) *models.CategorizedProps {
	if cat.IsEmpty() {
		return nil
	}
	return cat
}
