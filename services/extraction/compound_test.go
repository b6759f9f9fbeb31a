package extraction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseSource(t *testing.T, source string) *sourceFile {
	t.Helper()
	f, err := parseTSX(context.Background(), []byte(source))
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f
}

func TestCompoundObjectAssign(t *testing.T) {
	source := `
const TabsRoot = ({ children }) => <div>{children}</div>
const TabsList = ({ children }) => <div role="tablist">{children}</div>
const TabsTrigger = ({ children }) => <button role="tab">{children}</button>

export const Tabs = Object.assign(TabsRoot, {
  List: TabsList,
  Trigger: TabsTrigger,
})
`
	f := parseSource(t, source)
	info := detectCompound(f)

	require.NotNil(t, info)
	assert.True(t, info.IsCompound)
	assert.Equal(t, "Tabs", info.RootComponent)
	assert.Equal(t, []string{"List", "Trigger"}, info.SubComponents)
}

func TestCompoundRenamedExports(t *testing.T) {
	source := `
const Root = ({ children }) => <div>{children}</div>
const Trigger = ({ children }) => <button>{children}</button>
const Panel = ({ children }) => <section>{children}</section>

export { Root as Accordion, Trigger as AccordionTrigger, Panel as AccordionPanel }
`
	f := parseSource(t, source)
	info := detectCompound(f)

	require.NotNil(t, info)
	assert.Equal(t, "Accordion", info.RootComponent)
	assert.Equal(t, []string{"AccordionTrigger", "AccordionPanel"}, info.SubComponents)
}

func TestCompoundCommonPrefix(t *testing.T) {
	t.Run("word boundary required", func(t *testing.T) {
		info := compoundFromCommonPrefix([]string{"Dialog", "Dialogs"})
		assert.Nil(t, info)
	})

	t.Run("prefix must itself be exported", func(t *testing.T) {
		info := compoundFromCommonPrefix([]string{"CardHeader", "CardFooter"})
		assert.Nil(t, info)
	})

	t.Run("detects root and members", func(t *testing.T) {
		info := compoundFromCommonPrefix([]string{"Card", "CardHeader", "CardContent", "CardFooter"})
		require.NotNil(t, info)
		assert.Equal(t, "Card", info.RootComponent)
		assert.Equal(t, []string{"CardHeader", "CardContent", "CardFooter"}, info.SubComponents)
	})

	t.Run("single export is not compound", func(t *testing.T) {
		assert.Nil(t, compoundFromCommonPrefix([]string{"Button"}))
	})
}

func TestRequiredInComposition(t *testing.T) {
	source := `
const Select = ({ children }) => (
  <div>
    <SelectTrigger />
    {children}
  </div>
)
const SelectTrigger = () => <button />
const SelectContent = ({ children }) => <div>{children}</div>

export { Select, SelectTrigger, SelectContent }
`
	f := parseSource(t, source)
	info := detectCompound(f)
	require.NotNil(t, info)

	subs := subComponentsFor(f, info, nil, nil)
	require.Len(t, subs, 2)

	byName := map[string]bool{}
	for _, sub := range subs {
		byName[sub.Name] = sub.RequiredInComposition
	}
	assert.True(t, byName["SelectTrigger"])
	assert.False(t, byName["SelectContent"])
}

func TestRadixPrimitiveShapes(t *testing.T) {
	source := `
import * as React from "react"
import * as PopoverPrimitive from "@radix-ui/react-popover"

const Popover = PopoverPrimitive.Root

const PopoverContent = React.forwardRef((props, ref) => (
  <PopoverPrimitive.Content ref={ref} {...props} />
))

function PopoverArrow() {
  return <PopoverPrimitive.Arrow />
}

export { Popover, PopoverContent, PopoverArrow }
`
	f := parseSource(t, source)
	namespaces := map[string]string{"PopoverPrimitive": "@radix-ui/react-popover"}

	t.Run("direct re-export", func(t *testing.T) {
		ref := radixPrimitiveFor(f, namespaces, "Popover")
		require.NotNil(t, ref)
		assert.Equal(t, "Root", ref.Primitive)
		assert.Equal(t, "https://www.radix-ui.com/primitives/docs/components/popover#root", ref.DocsURL)
	})

	t.Run("forwardRef body", func(t *testing.T) {
		ref := radixPrimitiveFor(f, namespaces, "PopoverContent")
		require.NotNil(t, ref)
		assert.Equal(t, "Content", ref.Primitive)
	})

	t.Run("function declaration body", func(t *testing.T) {
		ref := radixPrimitiveFor(f, namespaces, "PopoverArrow")
		require.NotNil(t, ref)
		assert.Equal(t, "Arrow", ref.Primitive)
		assert.Equal(t, "https://www.radix-ui.com/primitives/docs/components/popover#arrow", ref.DocsURL)
	})

	t.Run("unrelated namespace", func(t *testing.T) {
		assert.Nil(t, radixPrimitiveFor(f, map[string]string{"Other": "@radix-ui/react-tooltip"}, "Popover"))
	})
}
