// Package dispatch creates match scores and pushes them to live subjects.
//
// CreateMatch runs the whole pipeline for one (subject, counterparty,
// campaign) key:
//
//	load (concurrent) -> score -> upsert pending -> send -> upsert final state
//
// Scoring never fails (the engine falls back to a heuristic). Load and
// persistence errors abort the call. A pending row is written before the
// send so the pushed event carries the stored match ID. The final state is
// delivered only when the subject's connection accepted the frame; a missing
// connection or a failed send (closed socket, full send queue) records the
// match as unclaimed so it shows up in ListUnclaimed.
package dispatch
