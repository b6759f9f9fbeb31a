package extraction

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/context-engine/models"
)

const radixPackagePrefix = "@radix-ui/react-"

// utilityPathSegments marks internal imports that are helpers rather than
// components. They never become internal-component dependencies.
var utilityPathSegments = map[string]bool{
	"utils": true, "helpers": true, "lib": true, "hooks": true,
	"types": true, "cn": true, "clsx": true, "constants": true,
}

type dependencyInfo struct {
	npm         map[string]string
	internal    []string
	baseLibrary *models.BaseLibraryRef
	// namespaceImports maps local namespace names to their package
	// specifier, for the primitive pass: import * as X from '@radix-ui/…'.
	namespaceImports map[string]string
}

// collectDependencies walks every import statement. Specifiers starting with
// `.` or `/`, or matching a configured path alias, are internal; everything
// else is an npm package. Type-only imports are skipped entirely.
func collectDependencies(f *sourceFile, pathAliases []string, knownPackages map[string]string) dependencyInfo {
	info := dependencyInfo{
		npm:              map[string]string{},
		internal:         []string{},
		namespaceImports: map[string]string{},
	}
	seenInternal := map[string]bool{}

	for _, imp := range collect(f.root, "import_statement") {
		if strings.HasPrefix(f.text(imp), "import type") {
			continue
		}
		source := imp.ChildByFieldName("source")
		if source == nil {
			continue
		}
		spec := f.stringValue(source)
		if spec == "" {
			continue
		}

		if ns := namespaceImportName(f, imp); ns != "" {
			info.namespaceImports[ns] = spec
		}

		if isInternalSpecifier(spec, pathAliases) {
			name := internalComponentName(spec)
			if name != "" && !seenInternal[name] {
				seenInternal[name] = true
				info.internal = append(info.internal, name)
			}
			continue
		}

		pkg := npmPackageName(spec)
		if pkg == "" {
			continue
		}
		version := "*"
		if v, ok := knownPackages[pkg]; ok && v != "" {
			version = v
		}
		info.npm[pkg] = version
	}

	info.baseLibrary = detectBaseLibrary(info.npm)
	return info
}

func namespaceImportName(f *sourceFile, imp *sitter.Node) string {
	var name string
	walk(imp, func(n *sitter.Node) bool {
		if n.Type() == "namespace_import" {
			for _, child := range f.namedChildren(n) {
				if child.Type() == "identifier" {
					name = f.text(child)
				}
			}
			return false
		}
		return true
	})
	return name
}

func isInternalSpecifier(spec string, pathAliases []string) bool {
	if strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/") {
		return true
	}
	for _, alias := range pathAliases {
		alias = strings.TrimSuffix(alias, "*")
		if alias != "" && strings.HasPrefix(spec, alias) {
			return true
		}
	}
	return false
}

// npmPackageName extracts the package identity from a specifier, keeping two
// segments for scoped packages and the first otherwise.
func npmPackageName(spec string) string {
	parts := strings.Split(spec, "/")
	if strings.HasPrefix(spec, "@") {
		if len(parts) < 2 {
			return ""
		}
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

// internalComponentName turns an internal specifier into a component
// reference. Utility paths are dropped.
func internalComponentName(spec string) string {
	spec = strings.TrimSuffix(spec, "/")
	parts := strings.Split(spec, "/")
	last := parts[len(parts)-1]
	last = strings.TrimSuffix(last, ".tsx")
	last = strings.TrimSuffix(last, ".ts")
	if last == "" || last == "." || last == ".." {
		return ""
	}
	if utilityPathSegments[strings.ToLower(last)] {
		return ""
	}
	return models.Pascal(last)
}

// detectBaseLibrary reports the Radix package when exactly one is imported.
func detectBaseLibrary(npm map[string]string) *models.BaseLibraryRef {
	var matches []string
	for pkg := range npm {
		if strings.HasPrefix(pkg, radixPackagePrefix) {
			matches = append(matches, pkg)
		}
	}
	if len(matches) != 1 {
		return nil
	}
	pkg := matches[0]
	return &models.BaseLibraryRef{
		Name:      pkg,
		Component: models.Pascal(strings.TrimPrefix(pkg, radixPackagePrefix)),
	}
}
