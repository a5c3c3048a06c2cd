package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors without knowing
// which backend produced them.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in the store
// - ErrExpired: auth state or session has passed its expiry
// - ErrConflict: unique-key collision the caller must resolve
// - ErrInvalidToken: client-held token failed decryption or signature checks
// - ErrUnavailable: backing store temporarily unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrExpired      = errors.New("expired")
	ErrConflict     = errors.New("conflict")
	ErrInvalidToken = errors.New("invalid token")
	ErrUnavailable  = errors.New("unavailable")
)
