package extraction

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
)

// sourceFile wraps one parsed TSX file. All node text reads go through it
// so byte-range slicing stays in one place.
type sourceFile struct {
	src  []byte
	tree *sitter.Tree
	root *sitter.Node
}

func parseTSX(ctx context.Context, src []byte) (*sourceFile, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(tsx.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source: %w", err)
	}

	return &sourceFile{
		src:  src,
		tree: tree,
		root: tree.RootNode(),
	}, nil
}

func (f *sourceFile) Close() {
	if f.tree != nil {
		f.tree.Close()
	}
}

func (f *sourceFile) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(f.src[n.StartByte():n.EndByte()])
}

func (f *sourceFile) namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, n.NamedChild(i))
	}
	return out
}

// walk visits nodes preorder. Returning false from fn skips the subtree.
func walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), fn)
	}
}

// collect returns every descendant (including n) of the given type.
func collect(n *sitter.Node, nodeType string) []*sitter.Node {
	var out []*sitter.Node
	walk(n, func(node *sitter.Node) bool {
		if node.Type() == nodeType {
			out = append(out, node)
		}
		return true
	})
	return out
}

// unwrapExpression strips parens and type-level wrappers so callers see the
// underlying expression: (x), x as T, x satisfies T, x!.
func unwrapExpression(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Type() {
		case "parenthesized_expression", "as_expression", "satisfies_expression", "non_null_expression":
			if n.NamedChildCount() == 0 {
				return n
			}
			n = n.NamedChild(0)
		default:
			return n
		}
	}
	return n
}

// stringValue strips the quotes off a string literal node. Non-string nodes
// return their raw text.
func (f *sourceFile) stringValue(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	raw := f.text(n)
	switch n.Type() {
	case "string", "template_string":
		if len(raw) >= 2 {
			return raw[1 : len(raw)-1]
		}
	}
	return raw
}

type objectEntry struct {
	key   string
	value *sitter.Node // nil for shorthand properties
}

// objectEntries flattens an object literal into key/value pairs in source
// order. Spread elements and computed keys are skipped.
func (f *sourceFile) objectEntries(obj *sitter.Node) []objectEntry {
	if obj == nil || obj.Type() != "object" {
		return nil
	}
	var out []objectEntry
	for _, child := range f.namedChildren(obj) {
		switch child.Type() {
		case "pair":
			key := child.ChildByFieldName("key")
			value := child.ChildByFieldName("value")
			if key == nil {
				continue
			}
			name := f.text(key)
			if key.Type() == "string" {
				name = f.stringValue(key)
			}
			if key.Type() == "computed_property_name" {
				continue
			}
			out = append(out, objectEntry{key: name, value: value})
		case "shorthand_property_identifier":
			out = append(out, objectEntry{key: f.text(child)})
		case "method_definition":
			key := child.ChildByFieldName("name")
			if key != nil {
				out = append(out, objectEntry{key: f.text(key), value: child})
			}
		}
	}
	return out
}

func (f *sourceFile) entryFor(obj *sitter.Node, key string) *sitter.Node {
	for _, e := range f.objectEntries(obj) {
		if e.key == key {
			return e.value
		}
	}
	return nil
}

// findDeclarator locates `const name = …` anywhere in the file and returns
// the declarator node.
func (f *sourceFile) findDeclarator(name string) *sitter.Node {
	var found *sitter.Node
	walk(f.root, func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.Type() == "variable_declarator" {
			if id := n.ChildByFieldName("name"); id != nil && f.text(id) == name {
				found = n
				return false
			}
		}
		return true
	})
	return found
}

// componentBody resolves the function body of a component declared as a
// function declaration, an arrow, or wrapped in forwardRef/memo calls.
func (f *sourceFile) componentBody(name string) *sitter.Node {
	var body *sitter.Node
	walk(f.root, func(n *sitter.Node) bool {
		if body != nil {
			return false
		}
		if n.Type() == "function_declaration" {
			if id := n.ChildByFieldName("name"); id != nil && f.text(id) == name {
				body = n.ChildByFieldName("body")
				return false
			}
		}
		return true
	})
	if body != nil {
		return body
	}

	decl := f.findDeclarator(name)
	if decl == nil {
		return nil
	}
	return f.functionBodyOf(decl.ChildByFieldName("value"))
}

// functionBodyOf digs through wrapper calls (forwardRef, memo, and their
// compositions) until it reaches a function and returns its body.
func (f *sourceFile) functionBodyOf(value *sitter.Node) *sitter.Node {
	value = unwrapExpression(value)
	for depth := 0; value != nil && depth < 4; depth++ {
		switch value.Type() {
		case "arrow_function", "function_expression", "function":
			return value.ChildByFieldName("body")
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

// jsdocBefore returns the cleaned text of a /** */ comment immediately
// preceding the node, plus any @default value it declares.
func (f *sourceFile) jsdocBefore(n *sitter.Node) (description string, defaultValue string) {
	prev := n.PrevNamedSibling()
	if prev == nil || prev.Type() != "comment" {
		return "", ""
	}
	raw := f.text(prev)
	if !strings.HasPrefix(raw, "/**") {
		return "", ""
	}
	return cleanJSDoc(raw)
}

func cleanJSDoc(raw string) (description string, defaultValue string) {
	body := strings.TrimSuffix(strings.TrimPrefix(raw, "/**"), "*/")
	var descLines []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "@default") {
			defaultValue = strings.TrimSpace(strings.TrimPrefix(line, "@default"))
			defaultValue = strings.Trim(defaultValue, "`\"'")
			continue
		}
		if strings.HasPrefix(line, "@") {
			continue
		}
		descLines = append(descLines, line)
	}
	return strings.Join(descLines, " "), defaultValue
}

// isPascalCase reports identifier-style component names: leading uppercase
// with at least one lowercase rune, so ALL_CAPS constants do not match.
func isPascalCase(name string) bool {
	if name == "" {
		return false
	}
	runes := []rune(name)
	if !unicode.IsUpper(runes[0]) {
		return false
	}
	for _, r := range runes[1:] {
		if unicode.IsLower(r) {
			return true
		}
	}
	return false
}
