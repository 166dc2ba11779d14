// Package database provides the PostgreSQL match store.
//
// The store owns four tables:
//   - subjects, counterparties, campaigns: profile data written by the
//     profile service (or `matchd seed` in development)
//   - match_scores: one row per (subject, counterparty, campaign) key,
//     upserted by the dispatcher
//
// The schema is embedded and applied with EnsureSchema. A SQLite
// implementation with the same behaviour lives in the sqlite subpackage.
package database
