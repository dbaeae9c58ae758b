package domain

import "time"

// RevocationEntry marks one token id as revoked. ExpiresAt must equal or
// exceed the token's own expiry, otherwise a revoked token could become
// valid again once the entry is evicted.
type RevocationEntry struct {
	TokenID   string
	RevokedAt time.Time
	ExpiresAt time.Time
}

// SubjectTokenRef points at one live token belonging to a subject. The
// subject index that produces these is maintained by the session layer;
// this subsystem only consumes it for revoke-all-for-subject.
type SubjectTokenRef struct {
	TokenID   string
	ExpiresAt time.Time
}
