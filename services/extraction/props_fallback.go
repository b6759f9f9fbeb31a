package extraction

import (
	sitter "github.com/smacker/go-tree-sitter"
	"strings"
)

// fallbackProps is the literal walker used when the typed pass cannot
// produce a usable surface. It reads declared members as written, with no
// inheritance resolution, trying progressively looser locations:
//
//  1. the `{Name}Props` declaration's own members
//  2. the props type argument of a forwardRef call
//  3. an inline object type on the component's first parameter
//  4. the only `*Props` declaration in the file, whatever its name
func fallbackProps(f *sourceFile, componentName string) []RawProp {
	if iface := findInterface(f, componentName+"Props"); iface != nil {
		if props := membersOf(f, iface.ChildByFieldName("body")); len(props) > 0 {
			return finishFallback(f, componentName, props)
		}
	}
	if alias := findTypeAlias(f, componentName+"Props"); alias != nil {
		if props := literalAliasMembers(f, alias.ChildByFieldName("value")); len(props) > 0 {
			return finishFallback(f, componentName, props)
		}
	}

	if props := forwardRefProps(f, componentName); len(props) > 0 {
		return finishFallback(f, componentName, props)
	}

	if props := inlineParamProps(f, componentName); len(props) > 0 {
		return finishFallback(f, componentName, props)
	}

	if props := solePropsDeclaration(f); len(props) > 0 {
		return finishFallback(f, componentName, props)
	}
	return nil
}

func finishFallback(f *sourceFile, componentName string, props []RawProp) []RawProp {
	for i := range props {
		// Only destructuring defaults count in the literal pass; JSDoc
		// @default tags are a typed-extraction concern.
		props[i].DefaultValue = nil
		props[i].Type = simplifyType(props[i].Type, props[i].Values)
	}
	applySignatureDefaults(f, componentName, props)
	return props
}

// simplifyType collapses raw TypeScript type text into the short names the
// literal pass emits: string-literal unions become "string", callables
// "function", arrays "array". Anything unrecognized keeps its text.
func simplifyType(raw string, values []string) string {
	if len(values) > 0 {
		return "string"
	}
	switch raw {
	case "string", "number", "boolean", "bigint", "symbol", "object",
		"any", "unknown", "never", "void", "null", "undefined":
		return raw
	case "ReactNode", "React.ReactNode", "JSX.Element", "ReactElement",
		"React.ReactElement":
		return "ReactNode"
	}
	if strings.Contains(raw, "=>") {
		return "function"
	}
	if strings.HasSuffix(raw, "[]") || strings.HasPrefix(raw, "Array<") {
		return "array"
	}
	return raw
}

// literalAliasMembers reads only object-type members out of an alias value.
// Intersections contribute their literal parts; named references are left
// alone.
func literalAliasMembers(f *sourceFile, value *sitter.Node) []RawProp {
	if value == nil {
		return nil
	}
	switch value.Type() {
	case "object_type":
		return membersOf(f, value)
	case "intersection_type", "parenthesized_type":
		var props []RawProp
		for _, part := range f.namedChildren(value) {
			props = mergeProps(props, literalAliasMembers(f, part))
		}
		return props
	}
	return nil
}

// forwardRefProps resolves the second type argument of the forwardRef call
// assigned to this component: forwardRef<HTMLButtonElement, SomeProps>(…).
// The search stays inside the component's own declaration so compound files
// with many forwardRef members do not cross wires.
func forwardRefProps(f *sourceFile, componentName string) []RawProp {
	decl := f.findDeclarator(componentName)
	if decl == nil {
		return nil
	}
	var propsType *sitter.Node
	walk(decl, func(n *sitter.Node) bool {
		if propsType != nil {
			return false
		}
		if n.Type() != "call_expression" {
			return true
		}
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return true
		}
		name := f.text(fn)
		if name != "forwardRef" && name != "React.forwardRef" {
			return true
		}
		for _, child := range f.namedChildren(n) {
			if child.Type() == "type_arguments" && child.NamedChildCount() >= 2 {
				propsType = child.NamedChild(1)
				return false
			}
		}
		return true
	})
	if propsType == nil {
		return nil
	}
	switch propsType.Type() {
	case "object_type":
		return membersOf(f, propsType)
	case "type_identifier":
		name := f.text(propsType)
		if iface := findInterface(f, name); iface != nil {
			return membersOf(f, iface.ChildByFieldName("body"))
		}
		if alias := findTypeAlias(f, name); alias != nil {
			return literalAliasMembers(f, alias.ChildByFieldName("value"))
		}
	}
	return nil
}

// inlineParamProps reads an object type annotated directly on the first
// parameter: ({ label, onAction }: { label: string; onAction?: () => void }).
func inlineParamProps(f *sourceFile, componentName string) []RawProp {
	params := componentParameters(f, componentName)
	if params == nil || params.NamedChildCount() == 0 {
		return nil
	}
	first := params.NamedChild(0)
	ann := first.ChildByFieldName("type")
	if ann == nil || ann.NamedChildCount() == 0 {
		return nil
	}
	return literalAliasMembers(f, ann.NamedChild(0))
}

// solePropsDeclaration fires only when exactly one `*Props` declaration
// exists in the file, so a mismatched component name still finds its type.
func solePropsDeclaration(f *sourceFile) []RawProp {
	var matches []*sitter.Node
	isProps := func(id *sitter.Node) bool {
		return id != nil && strings.HasSuffix(f.text(id), "Props")
	}
	for _, n := range collect(f.root, "interface_declaration") {
		if isProps(n.ChildByFieldName("name")) {
			matches = append(matches, n.ChildByFieldName("body"))
		}
	}
	for _, n := range collect(f.root, "type_alias_declaration") {
		if isProps(n.ChildByFieldName("name")) {
			matches = append(matches, n.ChildByFieldName("value"))
		}
	}
	if len(matches) != 1 {
		return nil
	}
	node := matches[0]
	if node != nil && node.Type() != "object_type" && !strings.Contains(node.Type(), "body") {
		return literalAliasMembers(f, node)
	}
	return membersOf(f, node)
}
