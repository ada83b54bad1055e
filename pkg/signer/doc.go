// Package signer implements HMAC-SHA256 signing and verification of
// federation payloads: consensus reports exchanged with the resolver and
// ephemeral capability tokens. All nodes and the resolver share one secret;
// payload encodings are canonical and order-fixed.
package signer
