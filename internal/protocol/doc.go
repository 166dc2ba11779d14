// Package protocol defines the JSON frames exchanged over /ws.
//
// Client frames decode into a closed set of variants (DecodeClient); anything
// with an unknown type becomes an Echo. Server frames share one envelope and
// always carry a server-generated timestamp.
package protocol
