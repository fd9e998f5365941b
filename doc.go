// Package identity provides the user-identity and session-authentication
// core for multi-tenant web applications: idempotent account provisioning,
// opaque session credentials with a fixed lifetime, pluggable password and
// federated login strategies, and request-scoped access guards.
//
// Provisioning:
//   - Manager owns account policy. Register normalizes and de-duplicates by
//     email (the store's unique constraint is the source of truth under
//     concurrency), FederatedLogin converges third-party assertions onto
//     local accounts, and BootstrapAdmin provisions the administrator from
//     the environment contract exactly once per process.
//
// Sessions:
//   - DatabaseStrategy issues cryptographically random bearer tokens that
//     the store resolves back to users. Expired and unknown tokens are
//     indistinguishable to callers. Backend binds the strategy to the
//     cookie transport convention; a new login always issues a fresh
//     credential and logout revokes it.
//
// Guards:
//   - Guards wraps the backend with current-user predicates for routing
//     layers: required and optional variants (strict and lenient), plus the
//     IsPrivileged administrator-or-superuser check.
//
// Everything is assembled explicitly by Bootstrap; there is no global
// state. Activity sinks receive best-effort audit events for registration,
// login, federated login, and logout.
package identity
