// Package model defines shared data types used across the match service.
//
// Conventions:
//   - Scores: integers in [0,100]
//   - Money: int64 cents
//   - Timestamps: time.Time in UTC
//   - IDs: opaque strings issued by the profile service; match IDs are uuid strings
package model
