package extraction

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/context-engine/models"
)

// detectCompound recognizes compound components from three shapes, in order:
//
//	(a) const Root = Object.assign(Base, { Sub1, Sub2 })
//	(b) export { Root as Dialog, Trigger as DialogTrigger }
//	(c) multiple PascalCase exports sharing a word-boundary prefix
func detectCompound(f *sourceFile) *models.CompoundInfo {
	if info := compoundFromObjectAssign(f); info != nil {
		return info
	}
	if info := compoundFromRenamedExports(f); info != nil {
		return info
	}
	return compoundFromCommonPrefix(exportedComponentNames(f))
}

func compoundFromObjectAssign(f *sourceFile) *models.CompoundInfo {
	for _, declarator := range collect(f.root, "variable_declarator") {
		nameNode := declarator.ChildByFieldName("name")
		value := unwrapExpression(declarator.ChildByFieldName("value"))
		if nameNode == nil || value == nil || value.Type() != "call_expression" {
			continue
		}
		fn := value.ChildByFieldName("function")
		if fn == nil || f.text(fn) != "Object.assign" {
			continue
		}
		args := value.ChildByFieldName("arguments")
		if args == nil || args.NamedChildCount() < 2 {
			continue
		}
		obj := asObject(args.NamedChild(1))
		if obj == nil {
			continue
		}
		var subs []string
		for _, e := range f.objectEntries(obj) {
			if isPascalCase(e.key) {
				subs = append(subs, e.key)
			}
		}
		if len(subs) == 0 {
			continue
		}
		return &models.CompoundInfo{
			IsCompound:    true,
			RootComponent: f.text(nameNode),
			SubComponents: subs,
		}
	}
	return nil
}

// compoundFromRenamedExports matches export clauses that rename a local
// `Root` member: the alias becomes the compound root and the other renamed
// exports its members.
func compoundFromRenamedExports(f *sourceFile) *models.CompoundInfo {
	for _, exp := range collect(f.root, "export_statement") {
		var root string
		var others []string
		renamed := false
		for _, spec := range collect(exp, "export_specifier") {
			nameNode := spec.ChildByFieldName("name")
			aliasNode := spec.ChildByFieldName("alias")
			if nameNode == nil {
				continue
			}
			public := f.text(nameNode)
			if aliasNode != nil {
				renamed = true
				public = f.text(aliasNode)
				if f.text(nameNode) == "Root" {
					root = public
					continue
				}
			}
			if isPascalCase(public) {
				others = append(others, public)
			}
		}
		if renamed && root != "" && len(others) > 0 {
			return &models.CompoundInfo{
				IsCompound:    true,
				RootComponent: root,
				SubComponents: others,
			}
		}
	}
	return nil
}

// compoundFromCommonPrefix finds the shortest exported name that is a
// word-boundary prefix of every other exported name. Word boundary means
// the character right after the prefix is uppercase, so Dialog prefixes
// DialogTrigger but not Dialogs.
func compoundFromCommonPrefix(names []string) *models.CompoundInfo {
	if len(names) < 2 {
		return nil
	}
	candidates := make([]string, len(names))
	copy(candidates, names)
	sort.Slice(candidates, func(i, j int) bool { return len(candidates[i]) < len(candidates[j]) })

	for _, root := range candidates {
		ok := true
		for _, other := range names {
			if other == root {
				continue
			}
			if !hasWordBoundaryPrefix(other, root) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		var subs []string
		for _, other := range names {
			if other != root {
				subs = append(subs, other)
			}
		}
		return &models.CompoundInfo{
			IsCompound:    true,
			RootComponent: root,
			SubComponents: subs,
		}
	}
	return nil
}

func hasWordBoundaryPrefix(name, prefix string) bool {
	if !strings.HasPrefix(name, prefix) || len(name) == len(prefix) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(name[len(prefix):])
	return unicode.IsUpper(r)
}

// exportedComponentNames lists PascalCase exports in source order: named
// export clauses (public names) and exported declarations.
func exportedComponentNames(f *sourceFile) []string {
	var names []string
	seen := map[string]bool{}
	add := func(name string) {
		if name != "" && isPascalCase(name) && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, exp := range collect(f.root, "export_statement") {
		if strings.HasPrefix(f.text(exp), "export default") {
			continue
		}
		for _, spec := range collect(exp, "export_specifier") {
			nameNode := spec.ChildByFieldName("name")
			if alias := spec.ChildByFieldName("alias"); alias != nil {
				nameNode = alias
			}
			if nameNode != nil {
				add(f.text(nameNode))
			}
		}
		for _, child := range f.namedChildren(exp) {
			switch child.Type() {
			case "lexical_declaration", "variable_declaration":
				for _, declarator := range collect(child, "variable_declarator") {
					if id := declarator.ChildByFieldName("name"); id != nil {
						add(f.text(id))
					}
				}
			case "function_declaration", "class_declaration":
				if id := child.ChildByFieldName("name"); id != nil {
					add(f.text(id))
				}
			}
		}
	}
	return names
}

// subComponentsFor builds the per-member specs for a detected compound. The
// literal props walker runs against the same source for each member, and a
// static pass over the root's JSX decides requiredInComposition.
func subComponentsFor(f *sourceFile, compound *models.CompoundInfo, namespaceImports map[string]string, decls []variantDecl) []models.SubComponentSpec {
	if compound == nil || !compound.IsCompound {
		return nil
	}
	rendered := jsxElementNames(f, f.componentBody(compound.RootComponent))

	specs := make([]models.SubComponentSpec, 0, len(compound.SubComponents))
	for _, name := range compound.SubComponents {
		spec := models.SubComponentSpec{
			Name:                  name,
			Props:                 toPropSpecs(filterProps(fallbackProps(f, name))),
			RequiredInComposition: rendered[name],
			RadixPrimitive:        radixPrimitiveFor(f, namespaceImports, name),
		}
		variants, defaults := variantsFor(f, name, decls)
		if len(variants) > 0 {
			spec.Variants = variants
			spec.DefaultVariants = defaults
		}
		specs = append(specs, spec)
	}
	return specs
}

// jsxElementNames collects every element name rendered inside a body.
func jsxElementNames(f *sourceFile, body *sitter.Node) map[string]bool {
	names := map[string]bool{}
	if body == nil {
		return names
	}
	walk(body, func(n *sitter.Node) bool {
		switch n.Type() {
		case "jsx_opening_element", "jsx_self_closing_element":
			if nameNode := n.ChildByFieldName("name"); nameNode != nil {
				names[f.text(nameNode)] = true
			}
		}
		return true
	})
	return names
}
