// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package tenantdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// ErrAgentExists is returned when an agent's email is already taken.
var ErrAgentExists = errors.New("tenantdb: agent email already registered")

// Agent is a licensed agent working the tenant's book of business.
type Agent struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// AgentInput is the writable part of an agent.
type AgentInput struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Phone     string `json:"phone" validate:"required,min=7,max=20"`
}

const agentColumns = `id, first_name, last_name, email, phone, created_at`

// CreateAgent inserts an agent. Input is expected to be validated.
func (db *DB) CreateAgent(ctx context.Context, in AgentInput) (Agent, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO agents (first_name, last_name, email, phone) VALUES (?, ?, ?, ?)`,
		in.FirstName, in.LastName, in.Email, in.Phone)
	if isUniqueViolation(err) {
		return Agent{}, ErrAgentExists
	}
	if err != nil {
		return Agent{}, fmt.Errorf("tenantdb: insert agent: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Agent{}, fmt.Errorf("tenantdb: insert agent: %w", err)
	}

	var a Agent
	err = db.conn.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = ?`, id).
		Scan(&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.Phone, &a.CreatedAt)
	if err != nil {
		return Agent{}, fmt.Errorf("tenantdb: load agent: %w", err)
	}
	return a, nil
}

// ListAgents returns every agent, newest first.
func (db *DB) ListAgents(ctx context.Context) ([]Agent, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+agentColumns+` FROM agents ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("tenantdb: list agents: %w", err)
	}
	defer rows.Close()

	agents := []Agent{}
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.Phone, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("tenantdb: scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tenantdb: list agents: %w", err)
	}
	return agents, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
