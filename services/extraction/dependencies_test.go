package extraction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectDependencies(t *testing.T) {
	source := `
import * as React from "react"
import { format } from "date-fns/format"
import { Command as CommandPrimitive } from "cmdk"
import * as DialogPrimitive from "@radix-ui/react-dialog"
import type { DateRange } from "react-day-picker"
import { cn } from "@/lib/utils"
import { Button } from "@/components/ui/button"
import { Calendar } from "./calendar"
import { useMediaQuery } from "../hooks"

export const DatePicker = () => <div />
`
	f, err := parseTSX(context.Background(), []byte(source))
	require.NoError(t, err)
	defer f.Close()

	info := collectDependencies(f, []string{"@/*"}, map[string]string{
		"react": "^18.3.1",
		"cmdk":  "^1.0.0",
	})

	t.Run("npm packages", func(t *testing.T) {
		assert.Equal(t, "^18.3.1", info.npm["react"])
		assert.Equal(t, "*", info.npm["date-fns"])
		assert.Equal(t, "^1.0.0", info.npm["cmdk"])
		assert.Equal(t, "*", info.npm["@radix-ui/react-dialog"])
		assert.NotContains(t, info.npm, "react-day-picker")
	})

	t.Run("internal components", func(t *testing.T) {
		// utils and hooks are utility paths, not components.
		assert.Equal(t, []string{"Button", "Calendar"}, info.internal)
	})

	t.Run("base library", func(t *testing.T) {
		require.NotNil(t, info.baseLibrary)
		assert.Equal(t, "@radix-ui/react-dialog", info.baseLibrary.Name)
		assert.Equal(t, "Dialog", info.baseLibrary.Component)
	})

	t.Run("namespace imports", func(t *testing.T) {
		assert.Equal(t, "@radix-ui/react-dialog", info.namespaceImports["DialogPrimitive"])
		assert.Equal(t, "react", info.namespaceImports["React"])
	})
}

func TestBaseLibraryRequiresExactlyOne(t *testing.T) {
	source := `
import * as DialogPrimitive from "@radix-ui/react-dialog"
import * as TooltipPrimitive from "@radix-ui/react-tooltip"

export const Thing = () => <div />
`
	f, err := parseTSX(context.Background(), []byte(source))
	require.NoError(t, err)
	defer f.Close()

	info := collectDependencies(f, nil, nil)
	assert.Nil(t, info.baseLibrary)
	assert.Len(t, info.npm, 2)
}

func TestNpmPackageName(t *testing.T) {
	tests := []struct {
		spec string
		want string
	}{
		{"react", "react"},
		{"date-fns/format", "date-fns"},
		{"@radix-ui/react-dialog", "@radix-ui/react-dialog"},
		{"@tanstack/react-table/core", "@tanstack/react-table"},
		{"@broken", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, npmPackageName(tt.spec), tt.spec)
	}
}

func TestKeepProp(t *testing.T) {
	tests := []struct {
		name          string
		declaringFile string
		keep          bool
	}{
		{"children", "", true},
		{"variant", "", true},
		{"onClick", "", false},
		{"onPointerDown", "", false},
		{"className", "", false},
		{"tabIndex", "", false},
		{"aria-label", "", false},
		{"data-state", "", false},
		{"onAction", "", true},
		{"label", "src/components/button.tsx", true},
		{"asChild", "node_modules/@radix-ui/react-slot/dist/index.d.ts", false},
		{"size", "/project/node_modules/@types/react/index.d.ts", false},
		{"children", "node_modules/@types/react/index.d.ts", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.keep, keepProp(tt.name, tt.declaringFile), tt.name)
	}
}

func TestFilterPropsKeepsOrder(t *testing.T) {
	props := []RawProp{
		{Name: "variant"},
		{Name: "onClick"},
		{Name: "size"},
		{Name: "aria-hidden"},
		{Name: "children", IsChildren: true},
	}
	filtered := filterProps(props)
	require.Len(t, filtered, 3)
	assert.Equal(t, "variant", filtered[0].Name)
	assert.Equal(t, "size", filtered[1].Name)
	assert.Equal(t, "children", filtered[2].Name)
}
