package extraction

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/context-engine/models"
)

// Input is one extraction job. PathAliases and KnownPackages come from the
// caller's project context when available.
type Input struct {
	Name            string
	SourceCode      string
	StoriesCode     string
	Framework       models.Framework
	FilePath        string
	StoriesFilePath string
	PathAliases     []string
	KnownPackages   map[string]string
}

// Result pairs the structural payload with how it was obtained.
type Result struct {
	Data        *models.ExtractedData
	Diagnostics models.ExtractionDiagnostics
}

var (
	hocPatterns = []string{
		"withRouter(", "connect(", "withStyles(", "withTheme(",
		"memo(forwardRef", "forwardRef(memo",
	}
	styledPattern = regexp.MustCompile("styled\\.[A-Za-z]|styled\\(|css`")

	// childrenSurface marks components whose type surface implies children
	// even when no explicit prop declares it.
	childrenSurface = regexp.MustCompile(`\b(?:React\.)?(?:[A-Za-z]*HTMLAttributes|ComponentProps(?:WithRef|WithoutRef)?|PropsWithChildren)\b`)
	childrenIdent   = regexp.MustCompile(`\bchildren\b`)
)

// Engine runs the full structural pass over one component source. It never
// returns an error to its caller: unparseable input degrades to an empty
// payload with diagnostics.
type Engine struct {
	props     PropsExtractor
	workspace *Workspace
	log       zerolog.Logger
}

func NewEngine(props PropsExtractor, workspace *Workspace, log zerolog.Logger) *Engine {
	return &Engine{
		props:     props,
		workspace: workspace,
		log:       log.With().Str("component", "extraction").Logger(),
	}
}

func (e *Engine) Extract(ctx context.Context, in Input) *Result {
	if in.Framework == "" {
		in.Framework = models.FrameworkReact
	}

	data := models.EmptyExtractedData()
	diag := models.ExtractionDiagnostics{Method: models.ExtractionMethodPrimary}

	filePath := in.FilePath
	if filePath == "" {
		filePath = models.Kebab(in.Name) + ".tsx"
	}
	storiesPath := in.StoriesFilePath
	if storiesPath == "" && in.StoriesCode != "" {
		storiesPath = models.Kebab(in.Name) + ".stories.tsx"
	}

	// Materialize sources on disk for the lifetime of the extraction so the
	// typed extractor sees real file paths. Reported file paths stay
	// logical.
	materializedPath := filePath
	if e.workspace != nil {
		lease, err := e.workspace.Materialize(map[string]string{
			filePath:    in.SourceCode,
			storiesPath: in.StoriesCode,
		})
		if err != nil {
			e.log.Warn().Err(err).Str("name", in.Name).Msg("workspace materialization failed")
		} else {
			defer lease.Release()
			materializedPath = lease.Path(filePath)
		}
	}

	source := []byte(in.SourceCode)
	f, err := parseTSX(ctx, source)
	if err != nil {
		e.log.Error().Err(err).Str("name", in.Name).Msg("source parse failed")
		diag.Method = models.ExtractionMethodFallback
		diag.FallbackTriggered = true
		diag.FallbackReason = models.FallbackReasonNoResult
		data.Files = extractionFiles(in, filePath, storiesPath)
		return &Result{Data: data, Diagnostics: diag}
	}
	defer f.Close()

	primary, primaryErr := e.props.ExtractProps(ctx, PropsInput{
		ComponentName: in.Name,
		FilePath:      materializedPath,
		Source:        source,
	})
	var typedProps []RawProp
	if primaryErr == nil && primary != nil {
		typedProps = filterProps(primary.Props)
	}

	reason, triggered := fallbackDecision(in.SourceCode, typedProps, primaryErr != nil || primary == nil)
	props := typedProps
	if triggered {
		diag.FallbackTriggered = true
		diag.FallbackReason = reason
		fb := filterProps(fallbackProps(f, in.Name))
		if len(typedProps) > 0 && len(fb) > 0 {
			diag.Method = models.ExtractionMethodHybrid
			props = mergeProps(fb, typedProps)
		} else {
			diag.Method = models.ExtractionMethodFallback
			if len(fb) > 0 {
				props = fb
			}
		}
		e.log.Debug().Str("name", in.Name).Str("reason", string(reason)).Msg("props fallback engaged")
	}
	data.Props = toPropSpecs(props)

	decls := collectVariantDecls(f)
	if variants, defaults := variantsFor(f, in.Name, decls); len(variants) > 0 {
		data.Variants = variants
		data.DefaultVariants = defaults
	}

	deps := collectDependencies(f, in.PathAliases, in.KnownPackages)
	data.NpmDependencies = deps.npm
	data.InternalDependencies = deps.internal
	data.BaseLibrary = deps.baseLibrary

	data.AcceptsChildren = acceptsChildren(in.SourceCode, props)
	data.SourceDescription = componentDescription(f, in.Name)
	data.RadixPrimitive = radixPrimitiveFor(f, deps.namespaceImports, in.Name)

	if compound := detectCompound(f); compound != nil && compound.RootComponent != "" {
		data.CompoundInfo = compound
		data.SubComponents = subComponentsFor(f, compound, deps.namespaceImports, decls)
	}

	if in.StoriesCode != "" {
		sf, serr := parseTSX(ctx, []byte(in.StoriesCode))
		if serr != nil {
			e.log.Warn().Err(serr).Str("name", in.Name).Msg("stories parse failed")
		} else {
			data.Stories = extractStories(sf, in.Name)
			sf.Close()
		}
	}

	data.Files = extractionFiles(in, filePath, storiesPath)
	return &Result{Data: data, Diagnostics: diag}
}

// fallbackDecision applies the explicit trigger rules in order. The first
// matching rule names the reason.
func fallbackDecision(source string, props []RawProp, noResult bool) (models.FallbackReason, bool) {
	if noResult {
		return models.FallbackReasonNoResult, true
	}
	if len(props) == 0 {
		return models.FallbackReasonNoProps, true
	}
	if strings.Contains(source, "forwardRef") && !hasProp(props, "ref") && len(props) < 2 {
		return models.FallbackReasonForwardRef, true
	}
	if len(props) < 3 {
		for _, pattern := range hocPatterns {
			if strings.Contains(source, pattern) {
				return models.FallbackReasonHOCPattern, true
			}
		}
	}
	if len(props) < 2 && styledPattern.MatchString(source) {
		return models.FallbackReasonStyledImport, true
	}
	return "", false
}

func hasProp(props []RawProp, name string) bool {
	for _, p := range props {
		if p.Name == name {
			return true
		}
	}
	return false
}

// acceptsChildren is true when a children prop survived filtering, the
// source touches a children identifier, or the props type extends a React
// attribute surface that carries children implicitly.
func acceptsChildren(source string, props []RawProp) bool {
	for _, p := range props {
		if p.IsChildren {
			return true
		}
	}
	if childrenIdent.MatchString(source) {
		return true
	}
	return childrenSurface.MatchString(source)
}

// componentDescription picks up the JSDoc block sitting directly above the
// component declaration, or above its export statement.
func componentDescription(f *sourceFile, name string) string {
	decl := f.findDeclarator(name)
	if decl == nil {
		return ""
	}
	for node := decl; node != nil; node = node.Parent() {
		switch node.Type() {
		case "lexical_declaration", "variable_declaration", "export_statement", "function_declaration":
			if desc, _ := f.jsdocBefore(node); desc != "" {
				return desc
			}
		case "program":
			return ""
		}
	}
	return ""
}

func extractionFiles(in Input, filePath, storiesPath string) []string {
	files := []string{filePath}
	if in.StoriesCode != "" && storiesPath != "" {
		files = append(files, storiesPath)
	}
	return files
}

func toPropSpecs(props []RawProp) []models.PropSpec {
	out := make([]models.PropSpec, 0, len(props))
	for _, p := range props {
		out = append(out, models.PropSpec{
			Name:         p.Name,
			Type:         p.Type,
			Description:  p.Description,
			DefaultValue: p.DefaultValue,
			Values:       p.Values,
			Required:     p.Required,
			IsChildren:   p.IsChildren,
		})
	}
	return out
}
