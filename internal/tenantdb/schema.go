// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package tenantdb

// schema is applied on every open. Statements must stay idempotent because a
// restored database already has them and an empty one does not.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS agents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		phone TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agents_email ON agents(email)`,
	`CREATE TABLE IF NOT EXISTS contacts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT NOT NULL,
		current_carrier TEXT,
		plan_type TEXT,
		effective_date DATE,
		birth_date DATE,
		tobacco_user BOOLEAN DEFAULT FALSE,
		gender TEXT,
		state TEXT,
		zip_code TEXT,
		agent_id INTEGER,
		last_emailed DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (agent_id) REFERENCES agents(id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email)`,
	`CREATE INDEX IF NOT EXISTS idx_contacts_agent ON contacts(agent_id)`,
}
