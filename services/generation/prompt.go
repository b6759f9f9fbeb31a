package generation

import (
	"fmt"
	"sort"
	"strings"
)

// buildPrompt renders the generation prompt. Identical inputs must yield an
// identical prompt, so every map is walked in sorted key order.
func buildPrompt(req MetaRequest, minDesc, maxDesc int) string {
	ex := req.Extracted
	var b strings.Builder

	fmt.Fprintf(&b, "Analyze the %s UI component %q and produce its semantic metadata by calling the %s tool.\n\n",
		req.Framework, req.Name, ToolName)

	if ex.SourceDescription != "" {
		fmt.Fprintf(&b, "Source documentation:\n%s\n\n", ex.SourceDescription)
	}

	if len(ex.Props) > 0 {
		b.WriteString("Props:\n")
		for _, p := range ex.Props {
			line := fmt.Sprintf("- %s: %s", p.Name, p.Type)
			if p.Required {
				line += " (required)"
			}
			if p.DefaultValue != nil {
				line += fmt.Sprintf(" = %v", p.DefaultValue)
			}
			if len(p.Values) > 0 {
				line += fmt.Sprintf(" values: %s", strings.Join(p.Values, ", "))
			}
			if p.Description != "" {
				line += " - " + p.Description
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}

	if len(ex.Variants) > 0 {
		b.WriteString("Variants:\n")
		for _, name := range sortedKeys(ex.Variants) {
			fmt.Fprintf(&b, "- %s: %s", name, strings.Join(ex.Variants[name], ", "))
			if def, ok := ex.DefaultVariants[name]; ok {
				fmt.Fprintf(&b, " (default: %s)", def)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(ex.SubComponents) > 0 {
		b.WriteString("Sub-components (compound component):\n")
		for _, sub := range ex.SubComponents {
			fmt.Fprintf(&b, "- %s", sub.Name)
			if sub.RequiredInComposition {
				b.WriteString(" (required)")
			}
			if len(sub.Variants) > 0 {
				parts := make([]string, 0, len(sub.Variants))
				for _, vn := range sortedKeys(sub.Variants) {
					parts = append(parts, fmt.Sprintf("%s=%s", vn, strings.Join(sub.Variants[vn], "|")))
				}
				fmt.Fprintf(&b, " variants: %s", strings.Join(parts, ", "))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(ex.NpmDependencies) > 0 {
		b.WriteString("Dependencies: ")
		deps := make([]string, 0, len(ex.NpmDependencies))
		for _, name := range sortedKeys2(ex.NpmDependencies) {
			deps = append(deps, name)
		}
		b.WriteString(strings.Join(deps, ", ") + "\n")
	}
	if len(ex.InternalDependencies) > 0 {
		fmt.Fprintf(&b, "Internal dependencies: %s\n", strings.Join(ex.InternalDependencies, ", "))
	}
	if ex.BaseLibrary != nil {
		fmt.Fprintf(&b, "Built on: %s", ex.BaseLibrary.Name)
		if ex.BaseLibrary.Component != "" {
			fmt.Fprintf(&b, " (%s)", ex.BaseLibrary.Component)
		}
		b.WriteString("\n")
	}
	if ex.RadixPrimitive != nil {
		fmt.Fprintf(&b, "Radix primitive: %s\n", ex.RadixPrimitive.Primitive)
	}
	b.WriteString("\n")

	if len(ex.Stories) > 0 {
		fmt.Fprintf(&b, "Working usage examples already exist (%d stories). Do NOT generate the examples field.\n\n", len(ex.Stories))
	} else {
		b.WriteString("No usage examples exist. Generate the examples field: one minimal example, 2-4 common examples, and advanced examples only where the component warrants them.\n\n")
	}

	if req.Hints != "" {
		fmt.Fprintf(&b, "Additional context from the caller:\n%s\n\n", req.Hints)
	}

	fmt.Fprintf(&b, "The description must be %d-%d characters. Allowed pattern tags (use only these): %s.\n",
		minDesc, maxDesc, strings.Join(patternEnum(), ", "))

	return b.String()
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys2(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
