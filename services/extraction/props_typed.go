package extraction

import (
	"context"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// TypedPropsExtractor resolves the `{Name}Props` interface or type alias
// declared in the component file. Extends clauses and intersection members
// that point at other in-file declarations are flattened in; references to
// external types (React.ButtonHTMLAttributes and friends) contribute
// nothing, so inherited DOM props never leak into the result.
type TypedPropsExtractor struct{}

func NewTypedPropsExtractor() *TypedPropsExtractor {
	return &TypedPropsExtractor{}
}

func (e *TypedPropsExtractor) Name() string { return "typed" }

func (e *TypedPropsExtractor) ExtractProps(ctx context.Context, in PropsInput) (*PropsResult, error) {
	f, err := parseTSX(ctx, in.Source)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	props := typedPropsFor(f, in.ComponentName)
	if props == nil {
		return &PropsResult{}, nil
	}

	for i := range props {
		props[i].DeclaringFile = in.FilePath
	}
	applySignatureDefaults(f, in.ComponentName, props)
	return &PropsResult{Props: props}, nil
}

// typedPropsFor resolves `{name}Props` and flattens it. Returns nil when the
// declaration does not exist.
func typedPropsFor(f *sourceFile, name string) []RawProp {
	return resolveTypeMembers(f, name+"Props", map[string]bool{})
}

// resolveTypeMembers flattens an interface or alias by name. Extended and
// intersected in-file types contribute members first so the named type's own
// members win on conflict. seen guards against declaration cycles.
func resolveTypeMembers(f *sourceFile, typeName string, seen map[string]bool) []RawProp {
	if seen[typeName] {
		return nil
	}
	seen[typeName] = true

	if iface := findInterface(f, typeName); iface != nil {
		var props []RawProp
		for _, base := range heritageTypeNodes(f, iface) {
			props = mergeProps(props, resolveTypeNode(f, base, seen))
		}
		props = mergeProps(props, membersOf(f, iface.ChildByFieldName("body")))
		return props
	}

	if alias := findTypeAlias(f, typeName); alias != nil {
		return resolveTypeNode(f, alias.ChildByFieldName("value"), seen)
	}
	return nil
}

func findInterface(f *sourceFile, name string) *sitter.Node {
	for _, n := range collect(f.root, "interface_declaration") {
		if id := n.ChildByFieldName("name"); id != nil && f.text(id) == name {
			return n
		}
	}
	return nil
}

func findTypeAlias(f *sourceFile, name string) *sitter.Node {
	for _, n := range collect(f.root, "type_alias_declaration") {
		if id := n.ChildByFieldName("name"); id != nil && f.text(id) == name {
			return n
		}
	}
	return nil
}

// heritageTypeNodes returns the type nodes of every extends clause on an
// interface.
func heritageTypeNodes(f *sourceFile, iface *sitter.Node) []*sitter.Node {
	var nodes []*sitter.Node
	for _, child := range f.namedChildren(iface) {
		if strings.Contains(child.Type(), "extends") {
			nodes = append(nodes, f.namedChildren(child)...)
		}
	}
	return nodes
}

// resolveTypeNode flattens one type expression. Qualified external names
// (React.ButtonHTMLAttributes) resolve to nothing, which is the point:
// inherited DOM surfaces are not part of the component's own API.
func resolveTypeNode(f *sourceFile, node *sitter.Node, seen map[string]bool) []RawProp {
	if node == nil {
		return nil
	}
	switch node.Type() {
	case "object_type":
		return membersOf(f, node)
	case "intersection_type", "parenthesized_type":
		var props []RawProp
		for _, part := range f.namedChildren(node) {
			props = mergeProps(props, resolveTypeNode(f, part, seen))
		}
		return props
	case "type_identifier":
		return resolveTypeMembers(f, f.text(node), seen)
	case "generic_type":
		if props := variantPropsMembers(f, node); props != nil {
			return props
		}
		if name := genericTypeName(f, node); name != "" {
			return resolveTypeMembers(f, name, seen)
		}
	}
	return nil
}

func genericTypeName(f *sourceFile, generic *sitter.Node) string {
	nameNode := generic.ChildByFieldName("name")
	if nameNode == nil && generic.NamedChildCount() > 0 {
		nameNode = generic.NamedChild(0)
	}
	if nameNode == nil || nameNode.Type() != "type_identifier" {
		return ""
	}
	return f.text(nameNode)
}

// variantPropsMembers expands VariantProps<typeof xVariants> into concrete
// props by reading the referenced builder declaration, mirroring what the
// type system computes for class-variance-authority and tailwind-variants.
func variantPropsMembers(f *sourceFile, generic *sitter.Node) []RawProp {
	if genericTypeName(f, generic) != "VariantProps" {
		return nil
	}
	var argText string
	for _, child := range f.namedChildren(generic) {
		if child.Type() == "type_arguments" && child.NamedChildCount() > 0 {
			argText = f.text(child.NamedChild(0))
		}
	}
	varName := strings.TrimSpace(strings.TrimPrefix(argText, "typeof"))
	if varName == "" || varName == argText {
		return nil
	}
	for _, decl := range collectVariantDecls(f) {
		if decl.varName != varName {
			continue
		}
		props := make([]RawProp, 0, len(decl.order))
		for _, group := range decl.order {
			values := decl.variants[group]
			quoted := make([]string, len(values))
			for i, v := range values {
				quoted[i] = `"` + v + `"`
			}
			prop := RawProp{
				Name:   group,
				Type:   strings.Join(quoted, " | "),
				Values: values,
			}
			if def, ok := decl.defaults[group]; ok {
				prop.DefaultValue = def
			}
			props = append(props, prop)
		}
		return props
	}
	return nil
}

// membersOf reads property signatures out of an interface or object type
// body.
func membersOf(f *sourceFile, body *sitter.Node) []RawProp {
	if body == nil {
		return nil
	}
	var props []RawProp
	for _, member := range f.namedChildren(body) {
		if member.Type() != "property_signature" {
			continue
		}
		nameNode := member.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := f.text(nameNode)
		if nameNode.Type() == "string" {
			name = f.stringValue(nameNode)
		}

		prop := RawProp{
			Name:       name,
			Required:   !isOptionalSignature(member),
			IsChildren: name == "children",
		}

		if ann := member.ChildByFieldName("type"); ann != nil && ann.NamedChildCount() > 0 {
			typeNode := ann.NamedChild(0)
			prop.Type = normalizeTypeText(f.text(typeNode))
			prop.Values = unionStringValues(f, typeNode)
		}

		desc, def := f.jsdocBefore(member)
		prop.Description = desc
		if def != "" {
			prop.DefaultValue = coerceLiteral(def)
		}

		props = append(props, prop)
	}
	return props
}

// isOptionalSignature checks for the `?` marker on a property signature. The
// marker is an anonymous child, so unnamed children are scanned too.
func isOptionalSignature(member *sitter.Node) bool {
	for i := 0; i < int(member.ChildCount()); i++ {
		if member.Child(i).Type() == "?" {
			return true
		}
	}
	return false
}

// unionStringValues returns the literal values when the type is a union made
// entirely of string literals. Any non-literal member disqualifies the whole
// union.
func unionStringValues(f *sourceFile, typeNode *sitter.Node) []string {
	if typeNode == nil || typeNode.Type() != "union_type" {
		return nil
	}
	var values []string
	ok := true
	walk(typeNode, func(n *sitter.Node) bool {
		switch n.Type() {
		case "union_type":
			return true
		case "literal_type":
			if n.NamedChildCount() == 1 && n.NamedChild(0).Type() == "string" {
				values = append(values, f.stringValue(n.NamedChild(0)))
				return false
			}
			ok = false
			return false
		default:
			ok = false
			return false
		}
	})
	if !ok || len(values) == 0 {
		return nil
	}
	return values
}

// applySignatureDefaults reads destructuring defaults from the component
// signature, e.g. ({ variant = "default", ...props }). A default found in
// code wins over one declared in JSDoc.
func applySignatureDefaults(f *sourceFile, componentName string, props []RawProp) {
	params := componentParameters(f, componentName)
	if params == nil {
		return
	}
	defaults := map[string]any{}
	walk(params, func(n *sitter.Node) bool {
		if n.Type() != "object_assignment_pattern" {
			return true
		}
		left := n.ChildByFieldName("left")
		right := n.ChildByFieldName("right")
		if left == nil || right == nil {
			return true
		}
		defaults[f.text(left)] = literalValue(f, right)
		return false
	})
	for i := range props {
		if v, ok := defaults[props[i].Name]; ok && v != nil {
			props[i].DefaultValue = v
		}
	}
}

// componentParameters finds the formal parameter list of the component
// function, digging through forwardRef/memo wrappers.
func componentParameters(f *sourceFile, name string) *sitter.Node {
	var params *sitter.Node
	walk(f.root, func(n *sitter.Node) bool {
		if params != nil {
			return false
		}
		if n.Type() == "function_declaration" {
			if id := n.ChildByFieldName("name"); id != nil && f.text(id) == name {
				params = n.ChildByFieldName("parameters")
				return false
			}
		}
		return true
	})
	if params != nil {
		return params
	}

	decl := f.findDeclarator(name)
	if decl == nil {
		return nil
	}
	value := unwrapExpression(decl.ChildByFieldName("value"))
	for depth := 0; value != nil && depth < 4; depth++ {
		switch value.Type() {
		case "arrow_function", "function_expression", "function":
			return value.ChildByFieldName("parameters")
		case "call_expression":
			args := value.ChildByFieldName("arguments")
			if args == nil || args.NamedChildCount() == 0 {
				return nil
			}
			value = unwrapExpression(args.NamedChild(0))
		default:
			return nil
		}
	}
	return nil
}

// literalValue converts a literal expression node into a Go value. Anything
// non-literal comes back as its source text.
func literalValue(f *sourceFile, n *sitter.Node) any {
	n = unwrapExpression(n)
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "string", "template_string":
		return f.stringValue(n)
	case "true":
		return true
	case "false":
		return false
	case "number":
		return coerceLiteral(f.text(n))
	case "null", "undefined":
		return nil
	}
	return f.text(n)
}

// coerceLiteral interprets a textual default into bool/number/string.
func coerceLiteral(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	return s
}

// mergeProps overlays later props onto earlier ones by name, keeping first
// occurrence order.
func mergeProps(base, overlay []RawProp) []RawProp {
	if len(base) == 0 {
		return overlay
	}
	index := map[string]int{}
	out := make([]RawProp, len(base))
	copy(out, base)
	for i, p := range out {
		index[p.Name] = i
	}
	for _, p := range overlay {
		if i, ok := index[p.Name]; ok {
			out[i] = p
			continue
		}
		index[p.Name] = len(out)
		out = append(out, p)
	}
	return out
}

func normalizeTypeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
