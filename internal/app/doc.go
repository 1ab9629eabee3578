// Package app provides the application service layer.
//
// Orchestrates use cases: reactions, catalog reads, admin edits, catalog sync and admin login.
// Sits between HTTP handlers and domain repositories. Depends on domain interfaces, not concrete implementations.
package app
