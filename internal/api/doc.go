// Package api provides the client for the external match scoring service.
//
// Endpoint:
//   - POST {provider_url}/v1/match-scores
//
// The request carries the subject, counterparty and campaign; the response
// carries per-dimension scores (0-100), strength and weakness areas and a
// reason. 5xx and 429 responses are reported as retryable APIErrors.
package api
