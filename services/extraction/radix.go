package extraction

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/context-engine/models"
)

const radixDocsBase = "https://www.radix-ui.com/primitives/docs/components/"

// radixPrimitiveFor maps a component name to the Radix primitive it wraps.
// Recognized shapes, given `import * as X from '@radix-ui/react-Y'`:
//
//	const N = X.Member
//	const N = forwardRef((props, ref) => <X.Member … />)
//	function N() { return <X.Member … /> }
func radixPrimitiveFor(f *sourceFile, namespaceImports map[string]string, name string) *models.RadixPrimitiveRef {
	radixNamespaces := map[string]string{}
	for local, pkg := range namespaceImports {
		if strings.HasPrefix(pkg, radixPackagePrefix) {
			radixNamespaces[local] = strings.TrimPrefix(pkg, radixPackagePrefix)
		}
	}
	if len(radixNamespaces) == 0 {
		return nil
	}

	if decl := f.findDeclarator(name); decl != nil {
		value := unwrapExpression(decl.ChildByFieldName("value"))
		if value != nil && value.Type() == "member_expression" {
			if ref := primitiveFromQualified(f.text(value), radixNamespaces); ref != nil {
				return ref
			}
		}
	}

	body := f.componentBody(name)
	if body == nil {
		return nil
	}
	var ref *models.RadixPrimitiveRef
	walk(body, func(n *sitter.Node) bool {
		if ref != nil {
			return false
		}
		switch n.Type() {
		case "jsx_opening_element", "jsx_self_closing_element":
			if nameNode := n.ChildByFieldName("name"); nameNode != nil {
				ref = primitiveFromQualified(f.text(nameNode), radixNamespaces)
			}
		}
		return true
	})
	return ref
}

// primitiveFromQualified resolves "X.Member" against the known Radix
// namespaces.
func primitiveFromQualified(qualified string, radixNamespaces map[string]string) *models.RadixPrimitiveRef {
	parts := strings.SplitN(qualified, ".", 2)
	if len(parts) != 2 {
		return nil
	}
	pkgSuffix, ok := radixNamespaces[parts[0]]
	if !ok {
		return nil
	}
	member := parts[1]
	return &models.RadixPrimitiveRef{
		Primitive: member,
		DocsURL:   radixDocsBase + pkgSuffix + "#" + strings.ToLower(member),
	}
}
