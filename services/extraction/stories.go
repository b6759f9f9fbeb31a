package extraction

import (
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/context-engine/models"
)

var (
	excludedStoryNames = []*regexp.Regexp{
		regexp.MustCompile(`^All(Variants|Sizes|States|Modes)$`),
		regexp.MustCompile(`^Showcase$`),
		regexp.MustCompile(`^Overview$`),
		regexp.MustCompile(`^Kitchen ?Sink$`),
	}
	minimalStoryName = regexp.MustCompile(`^(Default|Basic|Simple)$`)
	advancedPattern  = regexp.MustCompile(`\b(useState|useReducer|useRef|useEffect|useCallback|useMemo|setTimeout|setInterval|Promise|await)\b`)
)

type storyMeta struct {
	title     string
	component string
	args      *sitter.Node
}

type storyDecl struct {
	name       string
	args       *sitter.Node
	render     *sitter.Node
	parameters *sitter.Node
}

// extractStories parses a Storybook CSF file: the meta object plus every
// exported story object. Showcase-style stories and snapshot-disabled ones
// are dropped before classification.
func extractStories(f *sourceFile, componentName string) []models.StoryExample {
	meta := findStoryMeta(f)
	subject := componentName
	if meta.component != "" {
		subject = meta.component
	}

	var examples []models.StoryExample
	for _, story := range exportedStories(f) {
		if excludedStory(f, story) {
			continue
		}
		example := models.StoryExample{
			Title:      story.name,
			Complexity: classifyStory(f, story),
		}
		if story.render != nil {
			example.Code = renderCode(f, story.render)
		} else {
			example.Code = synthesizeStoryCode(f, subject, meta.args, story.args)
		}
		if example.Code == "" {
			continue
		}
		examples = append(examples, example)
	}
	return examples
}

// findStoryMeta locates the meta object: a `meta` declarator or the default
// export, unwrapping satisfies/as expressions either way.
func findStoryMeta(f *sourceFile) storyMeta {
	obj := metaObject(f)
	if obj == nil {
		return storyMeta{}
	}
	meta := storyMeta{args: asObject(f.entryFor(obj, "args"))}
	if title := f.entryFor(obj, "title"); title != nil {
		meta.title = f.stringValue(unwrapExpression(title))
	}
	if comp := f.entryFor(obj, "component"); comp != nil {
		meta.component = f.text(unwrapExpression(comp))
	}
	return meta
}

func metaObject(f *sourceFile) *sitter.Node {
	if decl := f.findDeclarator("meta"); decl != nil {
		if obj := asObject(decl.ChildByFieldName("value")); obj != nil {
			return obj
		}
	}
	for _, exp := range collect(f.root, "export_statement") {
		if !strings.HasPrefix(f.text(exp), "export default") {
			continue
		}
		for _, child := range f.namedChildren(exp) {
			value := unwrapExpression(child)
			if value == nil {
				continue
			}
			if value.Type() == "object" {
				return value
			}
			if value.Type() == "identifier" {
				if decl := f.findDeclarator(f.text(value)); decl != nil {
					return asObject(decl.ChildByFieldName("value"))
				}
			}
		}
	}
	return nil
}

func asObject(n *sitter.Node) *sitter.Node {
	n = unwrapExpression(n)
	if n != nil && n.Type() == "object" {
		return n
	}
	return nil
}

// exportedStories finds every `export const Name = { … }` whose value is an
// object literal. The meta declaration is excluded by name.
func exportedStories(f *sourceFile) []storyDecl {
	var stories []storyDecl
	for _, exp := range collect(f.root, "export_statement") {
		for _, declarator := range collect(exp, "variable_declarator") {
			nameNode := declarator.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			name := f.text(nameNode)
			if name == "meta" {
				continue
			}
			obj := asObject(declarator.ChildByFieldName("value"))
			if obj == nil {
				continue
			}
			stories = append(stories, storyDecl{
				name:       name,
				args:       asObject(f.entryFor(obj, "args")),
				render:     f.entryFor(obj, "render"),
				parameters: asObject(f.entryFor(obj, "parameters")),
			})
		}
	}
	return stories
}

func excludedStory(f *sourceFile, story storyDecl) bool {
	for _, re := range excludedStoryNames {
		if re.MatchString(story.name) {
			return true
		}
	}
	if chromatic := asObject(f.entryFor(story.parameters, "chromatic")); chromatic != nil {
		if v := f.entryFor(chromatic, "disableSnapshot"); v != nil && f.text(unwrapExpression(v)) == "true" {
			return true
		}
	}
	return false
}

func classifyStory(f *sourceFile, story storyDecl) models.StoryComplexity {
	if minimalStoryName.MatchString(story.name) {
		return models.StoryComplexityMinimal
	}
	if story.render != nil && advancedPattern.MatchString(f.text(story.render)) {
		return models.StoryComplexityAdvanced
	}
	return models.StoryComplexityCommon
}

// renderCode extracts the example code from a render function. A bare JSX
// body is emitted directly; block bodies keep the whole function so hook
// usage stays visible.
func renderCode(f *sourceFile, render *sitter.Node) string {
	render = unwrapExpression(render)
	if render == nil {
		return ""
	}
	if render.Type() == "arrow_function" {
		body := render.ChildByFieldName("body")
		if body != nil && body.Type() != "statement_block" {
			inner := unwrapExpression(body)
			return strings.TrimSpace(f.text(inner))
		}
	}
	return strings.TrimSpace(f.text(render))
}

// synthesizeStoryCode builds a JSX snippet from story args when no render
// function exists. Meta args come first, story args override them.
func synthesizeStoryCode(f *sourceFile, component string, metaArgs, storyArgs *sitter.Node) string {
	type argEntry struct {
		key   string
		value *sitter.Node
	}
	var ordered []argEntry
	index := map[string]int{}
	addAll := func(obj *sitter.Node) {
		for _, e := range f.objectEntries(obj) {
			if e.value == nil {
				continue
			}
			if i, ok := index[e.key]; ok {
				ordered[i].value = e.value
				continue
			}
			index[e.key] = len(ordered)
			ordered = append(ordered, argEntry{key: e.key, value: e.value})
		}
	}
	addAll(metaArgs)
	addAll(storyArgs)

	var attrs []string
	children := ""
	for _, e := range ordered {
		value := unwrapExpression(e.value)
		if value == nil {
			continue
		}
		if e.key == "children" {
			children = childrenText(f, value)
			continue
		}
		if attr := renderAttr(f, e.key, value); attr != "" {
			attrs = append(attrs, attr)
		}
	}

	open := component
	if len(attrs) > 0 {
		open += " " + strings.Join(attrs, " ")
	}
	if children == "" {
		return fmt.Sprintf("<%s />", open)
	}
	return fmt.Sprintf("<%s>%s</%s>", open, children, component)
}

func childrenText(f *sourceFile, value *sitter.Node) string {
	switch value.Type() {
	case "string", "template_string":
		return f.stringValue(value)
	case "jsx_element", "jsx_self_closing_element", "jsx_fragment":
		return f.text(value)
	}
	return f.text(value)
}

func renderAttr(f *sourceFile, key string, value *sitter.Node) string {
	switch value.Type() {
	case "string":
		return fmt.Sprintf("%s=%q", key, f.stringValue(value))
	case "template_string":
		return fmt.Sprintf("%s={%s}", key, f.text(value))
	case "true":
		return key
	case "false":
		return fmt.Sprintf("%s={false}", key)
	case "number":
		return fmt.Sprintf("%s={%s}", key, f.text(value))
	case "jsx_element", "jsx_self_closing_element", "jsx_fragment":
		return fmt.Sprintf("%s={%s}", key, f.text(value))
	case "arrow_function", "function_expression", "function":
		return ""
	case "null", "undefined":
		return ""
	}
	return fmt.Sprintf("%s={%s}", key, f.text(value))
}
