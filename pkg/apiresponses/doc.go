// Package apiresponses provides standardized HTTP API response helpers
// (error, not-found, unauthorized, forbidden, etc.) shared between api
// and resolver packages without import cycles.
package apiresponses
