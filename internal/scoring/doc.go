// Package scoring computes weighted, five-dimension match scores.
//
// Dimensions come from an external Provider when one is configured. Each
// attempt carries its own timeout; transport errors, timeouts, 5xx/429
// responses and schema-invalid assessments are retried with exponential
// backoff. When the provider is unavailable the engine falls back to a
// deterministic heuristic, so ComputeScore never returns an error.
//
//	overall = round(Σ weight·dimension), clamped to [0,100]
//
// Heuristic scores are capped at 95.
package scoring
