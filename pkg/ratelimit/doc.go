// Package ratelimit provides per-IP token-bucket rate limiting middleware
// for Gin HTTP servers, with separate default limits for read, privileged
// and federation endpoints and automatic stale-entry cleanup.
package ratelimit
