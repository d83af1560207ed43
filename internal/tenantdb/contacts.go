// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package tenantdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Contact is a lead or client of the tenant's agency.
type Contact struct {
	ID             int64      `json:"id"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Email          string     `json:"email"`
	CurrentCarrier string     `json:"current_carrier,omitempty"`
	PlanType       string     `json:"plan_type,omitempty"`
	EffectiveDate  string     `json:"effective_date,omitempty"`
	BirthDate      string     `json:"birth_date,omitempty"`
	TobaccoUser    bool       `json:"tobacco_user"`
	Gender         string     `json:"gender,omitempty"`
	State          string     `json:"state,omitempty"`
	ZipCode        string     `json:"zip_code,omitempty"`
	AgentID        *int64     `json:"agent_id,omitempty"`
	LastEmailed    *time.Time `json:"last_emailed,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ContactInput is the writable part of a contact.
type ContactInput struct {
	FirstName      string `json:"first_name" validate:"required,max=100"`
	LastName       string `json:"last_name" validate:"required,max=100"`
	Email          string `json:"email" validate:"required,email,max=254"`
	CurrentCarrier string `json:"current_carrier" validate:"omitempty,max=100"`
	PlanType       string `json:"plan_type" validate:"omitempty,oneof=Supplement Advantage PDP"`
	EffectiveDate  string `json:"effective_date" validate:"omitempty,datetime=2006-01-02"`
	BirthDate      string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	TobaccoUser    bool   `json:"tobacco_user"`
	Gender         string `json:"gender" validate:"omitempty,oneof=M F"`
	State          string `json:"state" validate:"omitempty,us_state"`
	ZipCode        string `json:"zip_code" validate:"omitempty,numeric,len=5"`
	AgentID        *int64 `json:"agent_id" validate:"omitempty,gt=0"`
}

const contactColumns = `id, first_name, last_name, email, current_carrier, plan_type,
	effective_date, birth_date, tobacco_user, gender, state, zip_code,
	agent_id, last_emailed, created_at`

// ListContacts returns contacts ordered by ID.
func (db *DB) ListContacts(ctx context.Context, limit, offset int) ([]Contact, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+contactColumns+` FROM contacts ORDER BY id LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("tenantdb: list contacts: %w", err)
	}
	defer rows.Close()

	contacts := []Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tenantdb: list contacts: %w", err)
	}
	return contacts, nil
}

// CountContacts returns the number of contacts.
func (db *DB) CountContacts(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("tenantdb: count contacts: %w", err)
	}
	return n, nil
}

// GetContact returns one contact, or sql.ErrNoRows.
func (db *DB) GetContact(ctx context.Context, id int64) (Contact, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id)
	c, err := scanContact(row)
	if err != nil {
		return Contact{}, err
	}
	return c, nil
}

// CreateContact inserts a contact. Input is expected to be validated.
func (db *DB) CreateContact(ctx context.Context, in ContactInput) (Contact, error) {
	effective, err := parseDate(in.EffectiveDate)
	if err != nil {
		return Contact{}, fmt.Errorf("tenantdb: effective_date: %w", err)
	}
	birth, err := parseDate(in.BirthDate)
	if err != nil {
		return Contact{}, fmt.Errorf("tenantdb: birth_date: %w", err)
	}

	if err := db.checkAgent(ctx, in.AgentID); err != nil {
		return Contact{}, err
	}

	res, err := db.conn.ExecContext(ctx, `INSERT INTO contacts (
			first_name, last_name, email, current_carrier, plan_type,
			effective_date, birth_date, tobacco_user, gender, state, zip_code, agent_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.FirstName, in.LastName, in.Email, nullString(in.CurrentCarrier), nullString(in.PlanType),
		effective, birth, in.TobaccoUser, nullString(in.Gender), nullString(in.State), nullString(in.ZipCode),
		in.AgentID,
	)
	if err != nil {
		return Contact{}, fmt.Errorf("tenantdb: insert contact: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Contact{}, fmt.Errorf("tenantdb: insert contact: %w", err)
	}
	return db.GetContact(ctx, id)
}

// UpdateContact replaces the writable fields of contact id. A nil AgentID
// keeps the current assignment. It returns sql.ErrNoRows for an unknown id.
func (db *DB) UpdateContact(ctx context.Context, id int64, in ContactInput) (Contact, error) {
	effective, err := parseDate(in.EffectiveDate)
	if err != nil {
		return Contact{}, fmt.Errorf("tenantdb: effective_date: %w", err)
	}
	birth, err := parseDate(in.BirthDate)
	if err != nil {
		return Contact{}, fmt.Errorf("tenantdb: birth_date: %w", err)
	}
	if err := db.checkAgent(ctx, in.AgentID); err != nil {
		return Contact{}, err
	}

	res, err := db.conn.ExecContext(ctx, `UPDATE contacts SET
			first_name = ?, last_name = ?, email = ?, current_carrier = ?, plan_type = ?,
			effective_date = ?, birth_date = ?, tobacco_user = ?, gender = ?, state = ?,
			zip_code = ?, agent_id = COALESCE(?, agent_id)
		WHERE id = ?`,
		in.FirstName, in.LastName, in.Email, nullString(in.CurrentCarrier), nullString(in.PlanType),
		effective, birth, in.TobaccoUser, nullString(in.Gender), nullString(in.State), nullString(in.ZipCode),
		in.AgentID, id,
	)
	if err != nil {
		return Contact{}, fmt.Errorf("tenantdb: update contact %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Contact{}, fmt.Errorf("tenantdb: update contact %d: %w", id, err)
	}
	if n == 0 {
		return Contact{}, sql.ErrNoRows
	}
	return db.GetContact(ctx, id)
}

// checkAgent returns ErrAgentNotFound when id is set but names no agent.
func (db *DB) checkAgent(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	var exists int
	err := db.conn.QueryRowContext(ctx, `SELECT 1 FROM agents WHERE id = ?`, *id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAgentNotFound
	}
	if err != nil {
		return fmt.Errorf("tenantdb: check agent: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContact(s scanner) (Contact, error) {
	var (
		c                                    Contact
		carrier, plan, gender, state, zip    sql.NullString
		effective, birth, emailed, createdAt sql.NullTime
		tobacco                              sql.NullBool
		agentID                              sql.NullInt64
	)
	err := s.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &carrier, &plan,
		&effective, &birth, &tobacco, &gender, &state, &zip,
		&agentID, &emailed, &createdAt)
	if err == sql.ErrNoRows {
		return Contact{}, err
	}
	if err != nil {
		return Contact{}, fmt.Errorf("tenantdb: scan contact: %w", err)
	}

	c.CurrentCarrier = carrier.String
	c.PlanType = plan.String
	c.Gender = gender.String
	c.State = state.String
	c.ZipCode = zip.String
	c.TobaccoUser = tobacco.Bool
	if effective.Valid {
		c.EffectiveDate = effective.Time.Format(dateLayout)
	}
	if birth.Valid {
		c.BirthDate = birth.Time.Format(dateLayout)
	}
	if agentID.Valid {
		c.AgentID = &agentID.Int64
	}
	if emailed.Valid {
		c.LastEmailed = &emailed.Time
	}
	c.CreatedAt = createdAt.Time
	return c, nil
}

func parseDate(s string) (any, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	// Stored as plain text so the column reads back as a DATE.
	return t.Format(dateLayout), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
