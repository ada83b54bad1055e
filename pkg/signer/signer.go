package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrEmptySecret is a ConfigError: a node must never run unsigned.
	ErrEmptySecret = errors.New("signing secret must not be empty")
	// ErrSignatureInvalid indicates a payload whose HMAC does not verify.
	ErrSignatureInvalid = errors.New("signature does not verify")
	// ErrTokenExpired indicates a token past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

// Token is an ephemeral capability grant. Tokens are never mutated; renewal
// issues a fresh one. The signature covers the canonical payload
// "nodeID:scope:issuedAtUnix:expiresAtUnix".
type Token struct {
	NodeID    string    `json:"node"`
	Scope     string    `json:"scope"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Signature string    `json:"signature"`
}

// Signer produces and verifies HMAC-SHA256 signatures over canonical,
// order-fixed payload strings using the shared federation secret. It does no
// I/O; the field order and ":" delimiter are part of the wire contract and
// must match the resolver's verifier exactly.
type Signer struct {
	secret []byte
}

// New builds a Signer from the shared secret. An empty secret is refused;
// callers treat that as fatal at startup.
func New(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign returns the hex HMAC-SHA256 of payload.
func (s *Signer) Sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares in constant time.
func (s *Signer) Verify(payload, signature string) bool {
	return hmac.Equal([]byte(s.Sign(payload)), []byte(signature))
}

// IssueToken creates a signed token for nodeID with the given scope and TTL.
func (s *Signer) IssueToken(nodeID, scope string, ttl time.Duration) Token {
	now := time.Now().UTC().Truncate(time.Second)
	tok := Token{
		NodeID:    nodeID,
		Scope:     scope,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	tok.Signature = s.Sign(canonicalToken(tok))
	return tok
}

// ValidateToken checks the token's signature and expiry. Signature failures
// are reported before expiry so a tampered token is never described as
// merely expired.
func (s *Signer) ValidateToken(tok Token) error {
	if !s.Verify(canonicalToken(tok), tok.Signature) {
		return ErrSignatureInvalid
	}
	if !time.Now().Before(tok.ExpiresAt) {
		return ErrTokenExpired
	}
	return nil
}

// RenewToken issues a fresh token with the same node and scope. The old
// token must still validate; its validation error is returned otherwise.
func (s *Signer) RenewToken(old Token, ttl time.Duration) (Token, error) {
	if err := s.ValidateToken(old); err != nil {
		return Token{}, fmt.Errorf("renewing token for %s: %w", old.NodeID, err)
	}
	return s.IssueToken(old.NodeID, old.Scope, ttl), nil
}

// SignReport signs a consensus report's canonical payload
// "epoch:leader:peer1,peer2,...". Peers are sorted before joining so every
// node producing the same report produces the same signature.
func (s *Signer) SignReport(epoch int64, leader string, peers []string) string {
	return s.Sign(canonicalReport(epoch, leader, peers))
}

// VerifyReport verifies a consensus report signature.
func (s *Signer) VerifyReport(epoch int64, leader string, peers []string, signature string) bool {
	return s.Verify(canonicalReport(epoch, leader, peers), signature)
}

func canonicalToken(tok Token) string {
	return strings.Join([]string{
		tok.NodeID,
		tok.Scope,
		strconv.FormatInt(tok.IssuedAt.Unix(), 10),
		strconv.FormatInt(tok.ExpiresAt.Unix(), 10),
	}, ":")
}

func canonicalReport(epoch int64, leader string, peers []string) string {
	sorted := make([]string, len(peers))
	copy(sorted, peers)
	sort.Strings(sorted)
	return strconv.FormatInt(epoch, 10) + ":" + leader + ":" + strings.Join(sorted, ",")
}
