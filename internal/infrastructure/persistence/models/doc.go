// Package models contains GORM persistence models for the ledger tables.
// Domain entities carry no ORM tags; each model converts to and from its
// domain type with ToDomain and FromDomain.
//
//   - base.go: shared id, timestamp and version columns
//   - ledger.go: ledger documents and their payments
//   - banking.go: bank accounts, bank and GL transactions, reconciliations
//   - event.go: the audit event log
package models
