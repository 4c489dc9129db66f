package pg

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the statement-execution capability the provisioning
// helpers need; *pgxpool.Pool satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// QuoteIdent quotes a SQL identifier, doubling embedded quotes.
// DDL statements cannot take identifiers as bind parameters.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral quotes a string literal, doubling embedded quotes.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// CreateDatabase provisions a database. An existing database of the
// same name is treated as already provisioned. owner may be empty.
func CreateDatabase(ctx context.Context, ex Execer, name, owner string) error {
	stmt := "CREATE DATABASE " + QuoteIdent(name)
	if owner != "" {
		stmt += " OWNER " + QuoteIdent(owner)
	}
	if _, err := ex.Exec(ctx, stmt); err != nil && !IsDuplicateObjectError(err) {
		return fmt.Errorf("create database %s: %w", name, err)
	}
	return nil
}

// DropDatabase tears a database down, idempotently.
func DropDatabase(ctx context.Context, ex Execer, name string) error {
	if _, err := ex.Exec(ctx, "DROP DATABASE IF EXISTS "+QuoteIdent(name)); err != nil && !IsUndefinedObjectError(err) {
		return fmt.Errorf("drop database %s: %w", name, err)
	}
	return nil
}

// CreateRole provisions a login role with the given password. An
// existing role of the same name is treated as already provisioned.
func CreateRole(ctx context.Context, ex Execer, name, password string) error {
	stmt := "CREATE ROLE " + QuoteIdent(name) + " LOGIN PASSWORD " + QuoteLiteral(password)
	if _, err := ex.Exec(ctx, stmt); err != nil && !IsDuplicateObjectError(err) {
		return fmt.Errorf("create role %s: %w", name, err)
	}
	return nil
}

// CreateSchema provisions a schema inside the connected database,
// idempotently.
func CreateSchema(ctx context.Context, ex Execer, name string) error {
	if _, err := ex.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+QuoteIdent(name)); err != nil {
		return fmt.Errorf("create schema %s: %w", name, err)
	}
	return nil
}

// DropSchema tears a schema and everything in it down, idempotently.
func DropSchema(ctx context.Context, ex Execer, name string) error {
	if _, err := ex.Exec(ctx, "DROP SCHEMA IF EXISTS "+QuoteIdent(name)+" CASCADE"); err != nil {
		return fmt.Errorf("drop schema %s: %w", name, err)
	}
	return nil
}
