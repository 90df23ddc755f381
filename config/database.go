package config

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
)

func InitDB() (*sql.DB, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

func RunMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,

		`CREATE TABLE IF NOT EXISTS projects (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			name VARCHAR(255) NOT NULL,
			client VARCHAR(255) DEFAULT '',
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS quotes (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			project_id UUID REFERENCES projects(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			status VARCHAR(50) DEFAULT 'draft',
			parent_quote_id UUID REFERENCES quotes(id),
			is_work_budget_active BOOLEAN DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS quote_budgets (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			quote_id UUID UNIQUE REFERENCES quotes(id) ON DELETE CASCADE,
			data JSONB NOT NULL,
			version INTEGER DEFAULT 1,
			updated_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS work_budgets (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			quote_id UUID UNIQUE REFERENCES quotes(id) ON DELETE CASCADE,
			data JSONB NOT NULL,
			comments JSONB NOT NULL DEFAULT '{}',
			version INTEGER DEFAULT 1,
			updated_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS quote_versions (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			quote_id UUID REFERENCES quotes(id) ON DELETE CASCADE,
			label VARCHAR(255) DEFAULT '',
			version INTEGER NOT NULL,
			data JSONB NOT NULL,
			created_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS quote_settings (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			quote_id UUID UNIQUE REFERENCES quotes(id) ON DELETE CASCADE,
			data JSONB NOT NULL,
			updated_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_quotes_project_id ON quotes(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_quote_budgets_quote_id ON quote_budgets(quote_id)`,
		`CREATE INDEX IF NOT EXISTS idx_work_budgets_quote_id ON work_budgets(quote_id)`,
		`CREATE INDEX IF NOT EXISTS idx_quote_versions_quote_id ON quote_versions(quote_id)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}
