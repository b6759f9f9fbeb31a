package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"

	_ "github.com/lib/pq"
)

// Bootstraps the context_engine schema. Two pieces live only here because
// the ORM cannot express them: the generated search_vector column and the
// HNSW index on the chunk embeddings.
func main() {
	fmt.Println("Creating Context Engine database tables...")

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "host=localhost port=5432 user=ceuser password=cepassword dbname=context_engine sslmode=disable"
	}

	dimensions := 1024
	if v := os.Getenv("EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			dimensions = n
		}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	err = db.Ping()
	if err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	fmt.Println("✅ Connected to database")

	fmt.Println("Creating context_engine schema...")
	_, err = db.Exec(`CREATE SCHEMA IF NOT EXISTS context_engine`)
	if err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}
	fmt.Println("✅ Schema created/verified")

	fmt.Println("Enabling pgvector extension...")
	_, err = db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`)
	if err != nil {
		log.Fatalf("Failed to enable pgvector (is the extension installed?): %v", err)
	}
	fmt.Println("✅ pgvector enabled")

	fmt.Println("Creating organizations table...")
	createOrganizationsTable := `
	CREATE TABLE IF NOT EXISTS context_engine.organizations (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name VARCHAR(255) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`

	_, err = db.Exec(createOrganizationsTable)
	if err != nil {
		log.Printf("Warning: Failed to create organizations table: %v", err)
	} else {
		fmt.Println("✅ Organizations table created/verified")
	}

	fmt.Println("Creating api_keys table...")
	createApiKeysTable := `
	CREATE TABLE IF NOT EXISTS context_engine.api_keys (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		org_id UUID NOT NULL REFERENCES context_engine.organizations(id) ON DELETE CASCADE,
		name VARCHAR(255),
		key_hash VARCHAR(64) NOT NULL,
		key_prefix VARCHAR(8) NOT NULL,
		scopes JSONB DEFAULT '[]',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		expires_at TIMESTAMP WITH TIME ZONE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`

	_, err = db.Exec(createApiKeysTable)
	if err != nil {
		log.Printf("Warning: Failed to create api_keys table: %v", err)
	} else {
		fmt.Println("✅ API keys table created/verified")
	}

	fmt.Println("Creating components table...")
	createComponentsTable := `
	CREATE TABLE IF NOT EXISTS context_engine.components (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		org_id UUID NOT NULL REFERENCES context_engine.organizations(id),
		slug VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		framework VARCHAR(20) NOT NULL DEFAULT 'react',
		version VARCHAR(50),
		visibility VARCHAR(20) NOT NULL DEFAULT 'private',
		source_hash VARCHAR(64),
		file_path VARCHAR(1024),
		extraction JSONB,
		generation JSONB,
		manifest JSONB,
		generation_provider VARCHAR(50),
		generation_model VARCHAR(100),
		embedding_status VARCHAR(20) NOT NULL DEFAULT 'pending',
		embedding_error TEXT,
		embedding_model JSONB,
		embedded_at TIMESTAMP WITH TIME ZONE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		search_vector tsvector GENERATED ALWAYS AS (
			setweight(to_tsvector('english', coalesce(name, '')), 'A') ||
			setweight(to_tsvector('english', coalesce(manifest->>'description', '')), 'B')
		) STORED
	)`

	_, err = db.Exec(createComponentsTable)
	if err != nil {
		log.Printf("Warning: Failed to create components table: %v", err)
	} else {
		fmt.Println("✅ Components table created/verified")
	}

	fmt.Println("Creating embedding_chunks table...")
	createChunksTable := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS context_engine.embedding_chunks (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		org_id UUID NOT NULL,
		component_id UUID NOT NULL REFERENCES context_engine.components(id) ON DELETE CASCADE,
		chunk_type VARCHAR(20) NOT NULL,
		chunk_index INTEGER NOT NULL DEFAULT 0,
		content TEXT NOT NULL,
		embedding vector(%d),
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`, dimensions)

	_, err = db.Exec(createChunksTable)
	if err != nil {
		log.Printf("Warning: Failed to create embedding_chunks table: %v", err)
	} else {
		fmt.Println("✅ Embedding chunks table created/verified")
	}

	fmt.Println("Creating indexes...")
	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_api_keys_hash ON context_engine.api_keys(key_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_api_keys_org ON context_engine.api_keys(org_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_components_org_slug ON context_engine.components(org_id, slug)`,
		`CREATE INDEX IF NOT EXISTS idx_components_org ON context_engine.components(org_id)`,
		`CREATE INDEX IF NOT EXISTS idx_components_org_framework ON context_engine.components(org_id, framework)`,
		`CREATE INDEX IF NOT EXISTS idx_components_org_embedding_status ON context_engine.components(org_id, embedding_status)`,
		`CREATE INDEX IF NOT EXISTS idx_components_status_updated ON context_engine.components(embedding_status, updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_components_search_vector ON context_engine.components USING GIN (search_vector)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_org ON context_engine.embedding_chunks(org_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_component ON context_engine.embedding_chunks(component_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_embedding_hnsw ON context_engine.embedding_chunks
			USING hnsw (embedding vector_cosine_ops) WITH (m = 16, ef_construction = 64)`,
	}

	for _, index := range indexes {
		_, err = db.Exec(index)
		if err != nil {
			log.Printf("Warning: Failed to create index: %v", err)
		}
	}
	fmt.Println("✅ Indexes created/verified")

	fmt.Println("\n🎉 Database setup complete!")
	fmt.Println("The context engine schema is ready.")
}
