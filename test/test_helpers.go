package test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/context-engine/models"
	"github.com/context-engine/services/generation"
)

var (
	bootstrapOnce sync.Once
	bootstrapErr  error
)

// requireDB connects to the database named by DATABASE_URL and makes sure
// the schema exists. Tests are skipped, not failed, when no database is
// reachable.
func requireDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Skipf("Database not available: %v", err)
	}

	bootstrapOnce.Do(func() {
		bootstrapErr = bootstrapSchema(db)
	})
	if bootstrapErr != nil {
		t.Skipf("Schema bootstrap failed (is pgvector installed?): %v", bootstrapErr)
	}

	return db
}

// bootstrapSchema mirrors scripts/create_tables.go minus the HNSW index,
// which only matters at production scale.
func bootstrapSchema(db *gorm.DB) error {
	if err := db.Exec(`CREATE SCHEMA IF NOT EXISTS context_engine`).Error; err != nil {
		return err
	}
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`).Error; err != nil {
		return err
	}

	if err := db.AutoMigrate(
		&models.Organization{},
		&models.ApiKey{},
		&models.Component{},
		&models.EmbeddingChunk{},
	); err != nil {
		return err
	}

	ddl := []string{
		`ALTER TABLE context_engine.embedding_chunks ADD COLUMN IF NOT EXISTS embedding vector(1024)`,
		`ALTER TABLE context_engine.components ADD COLUMN IF NOT EXISTS search_vector tsvector
			GENERATED ALWAYS AS (
				setweight(to_tsvector('english', coalesce(name, '')), 'A') ||
				setweight(to_tsvector('english', coalesce(manifest->>'description', '')), 'B')
			) STORED`,
		`CREATE INDEX IF NOT EXISTS idx_components_search_vector ON context_engine.components USING GIN (search_vector)`,
	}
	for _, stmt := range ddl {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// createTestOrg inserts a throwaway org and registers cleanup of everything
// hanging off it.
func createTestOrg(t *testing.T, db *gorm.DB, name string) models.Organization {
	t.Helper()

	org := models.Organization{ID: uuid.New(), Name: name}
	require.NoError(t, db.Create(&org).Error)

	t.Cleanup(func() {
		db.Exec(`DELETE FROM context_engine.embedding_chunks WHERE org_id = ?`, org.ID)
		db.Exec(`DELETE FROM context_engine.components WHERE org_id = ?`, org.ID)
		db.Exec(`DELETE FROM context_engine.api_keys WHERE org_id = ?`, org.ID)
		db.Exec(`DELETE FROM context_engine.organizations WHERE id = ?`, org.ID)
	})
	return org
}

// seedIndexedComponent inserts a component whose manifest carries the given
// description and flips it straight to indexed so keyword search sees it.
func seedIndexedComponent(t *testing.T, db *gorm.DB, orgID uuid.UUID, name, description string, framework models.Framework) models.Component {
	t.Helper()

	id := models.NewComponentID()
	slug := models.SlugFor(name, framework, id)

	manifest, err := json.Marshal(map[string]any{
		"name":        name,
		"slug":        slug,
		"description": description,
		"importStatement": map[string]string{
			"primary":  fmt.Sprintf("import { %s } from '@/components/ui'", name),
			"typeOnly": fmt.Sprintf("import type { %sProps } from '@/components/ui'", name),
		},
	})
	require.NoError(t, err)

	component := models.Component{
		ID:              id,
		OrgID:           orgID,
		Slug:            slug,
		Name:            name,
		Framework:       framework,
		Visibility:      models.VisibilityPrivate,
		Manifest:        manifest,
		EmbeddingStatus: models.EmbeddingStatusIndexed,
	}
	require.NoError(t, db.Create(&component).Error)
	return component
}

// cannedGenerator satisfies generation.Generator without a provider. The
// strings are long enough to pass manifest validation downstream.
type cannedGenerator struct {
	calls int
}

func (g *cannedGenerator) GenerateMeta(_ context.Context, req generation.MetaRequest) (*generation.MetaResult, error) {
	g.calls++
	return &generation.MetaResult{
		Meta: &models.ComponentMeta{
			Name:        req.Name,
			Description: fmt.Sprintf("%s is a reusable interface component with a small, well-defined prop surface for everyday product screens.", req.Name),
			AI: models.MetaAI{
				SemanticDescription: fmt.Sprintf("%s renders an accessible building block that composes cleanly with form and layout primitives.", req.Name),
				WhenToUse:           "Use when the screen needs this interaction pattern with consistent styling.",
				WhenNotToUse:        "Avoid when a plain HTML element already covers the need.",
				Patterns:            []string{string(models.PatternInteractiveControl)},
				RelatedComponents:   []string{},
				A11yNotes:           "Keyboard focusable; labelled through standard ARIA attributes.",
			},
		},
		Usage: &generation.Usage{InputTokens: 100, OutputTokens: 200},
		Model: "canned-model",
	}, nil
}

func (g *cannedGenerator) Provider() string { return "canned" }
func (g *cannedGenerator) Model() string    { return "canned-model" }

// testLogger keeps service logs out of test output.
func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// buttonSource is a minimal but structurally real component module: typed
// props with a variant union, a default value, and a subcomponent-free
// export. The extractor gets everything it needs from this shape.
const buttonSource = `
import * as React from "react"

export interface ButtonProps extends React.ButtonHTMLAttributes<HTMLButtonElement> {
  variant?: "default" | "destructive" | "outline"
  size?: "sm" | "md" | "lg"
  asChild?: boolean
}

const Button = React.forwardRef<HTMLButtonElement, ButtonProps>(
  ({ variant = "default", size = "md", asChild = false, ...props }, ref) => {
    return <button ref={ref} data-variant={variant} data-size={size} {...props} />
  }
)
Button.displayName = "Button"

export { Button }
`

const buttonStories = `
import type { Meta, StoryObj } from "@storybook/react"
import { Button } from "./button"

const meta: Meta<typeof Button> = { component: Button }
export default meta

type Story = StoryObj<typeof Button>

export const Default: Story = { args: { children: "Click me" } }
export const Destructive: Story = { args: { variant: "destructive", children: "Delete" } }
`
