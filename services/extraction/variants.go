package extraction

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/context-engine/models"
)

// variantDecl is one discovered builder declaration, e.g.
// const buttonVariants = cva(base, { variants: {…}, defaultVariants: {…} }).
// order keeps the variant group names in source order.
type variantDecl struct {
	varName  string
	variants map[string][]string
	defaults map[string]string
	order    []string
}

// variantBuilders are the factory identifiers recognized as variant sources:
// class-variance-authority's cva and tailwind-variants' tv.
var variantBuilders = map[string]bool{"cva": true, "tv": true}

// collectVariantDecls finds every builder declaration in the file.
func collectVariantDecls(f *sourceFile) []variantDecl {
	var decls []variantDecl
	for _, declarator := range collect(f.root, "variable_declarator") {
		nameNode := declarator.ChildByFieldName("name")
		value := unwrapExpression(declarator.ChildByFieldName("value"))
		if nameNode == nil || value == nil || value.Type() != "call_expression" {
			continue
		}
		fn := value.ChildByFieldName("function")
		if fn == nil || !variantBuilders[f.text(fn)] {
			continue
		}
		config := variantConfigArg(f, value.ChildByFieldName("arguments"))
		if config == nil {
			continue
		}
		decl := variantDecl{
			varName:  f.text(nameNode),
			variants: map[string][]string{},
			defaults: map[string]string{},
		}
		if variants := f.entryFor(config, "variants"); variants != nil {
			for _, group := range f.objectEntries(unwrapExpression(variants)) {
				valueObj := unwrapExpression(group.value)
				if valueObj == nil || valueObj.Type() != "object" {
					continue
				}
				var names []string
				for _, v := range f.objectEntries(valueObj) {
					names = append(names, v.key)
				}
				decl.variants[group.key] = names
				decl.order = append(decl.order, group.key)
			}
		}
		if defaults := f.entryFor(config, "defaultVariants"); defaults != nil {
			for _, d := range f.objectEntries(unwrapExpression(defaults)) {
				if d.value == nil {
					continue
				}
				decl.defaults[d.key] = f.stringValue(unwrapExpression(d.value))
			}
		}
		if len(decl.variants) > 0 {
			decls = append(decls, decl)
		}
	}
	return decls
}

// variantConfigArg picks the config object out of the call arguments. cva
// takes (base, config); tv takes (config). The first object argument
// carrying a variants key wins, falling back to the first object at all.
func variantConfigArg(f *sourceFile, args *sitter.Node) *sitter.Node {
	if args == nil {
		return nil
	}
	var firstObject *sitter.Node
	for _, arg := range f.namedChildren(args) {
		arg = unwrapExpression(arg)
		if arg == nil || arg.Type() != "object" {
			continue
		}
		if firstObject == nil {
			firstObject = arg
		}
		if f.entryFor(arg, "variants") != nil {
			return arg
		}
	}
	return firstObject
}

// variantsFor resolves the builders belonging to one component. Builders
// called inside the component body are linked by usage; when nothing links,
// a builder named {camelCase(component)}Variants is adopted by convention.
func variantsFor(f *sourceFile, componentName string, decls []variantDecl) (map[string][]string, map[string]string) {
	if len(decls) == 0 {
		return nil, nil
	}

	linked := map[string]bool{}
	if body := f.componentBody(componentName); body != nil {
		walk(body, func(n *sitter.Node) bool {
			if n.Type() != "call_expression" {
				return true
			}
			if fn := n.ChildByFieldName("function"); fn != nil && fn.Type() == "identifier" {
				linked[f.text(fn)] = true
			}
			return true
		})
	}

	variants := map[string][]string{}
	defaults := map[string]string{}
	matched := false
	for _, decl := range decls {
		if !linked[decl.varName] {
			continue
		}
		matched = true
		mergeVariantDecl(variants, defaults, decl)
	}
	if !matched {
		want := models.Camel(componentName) + "Variants"
		for _, decl := range decls {
			if decl.varName == want {
				mergeVariantDecl(variants, defaults, decl)
				matched = true
			}
		}
	}
	if !matched {
		return nil, nil
	}
	return variants, defaults
}

func mergeVariantDecl(variants map[string][]string, defaults map[string]string, decl variantDecl) {
	for name, values := range decl.variants {
		if _, exists := variants[name]; !exists {
			variants[name] = values
		}
	}
	for name, value := range decl.defaults {
		if _, exists := defaults[name]; !exists {
			defaults[name] = value
		}
	}
}
