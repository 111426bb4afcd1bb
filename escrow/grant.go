package escrow

import (
	"fmt"
	"strings"
	"time"
)

// GrantKind distinguishes rentals from permanent purchases.
type GrantKind uint8

const (
	GrantRental GrantKind = iota
	GrantPurchase
)

// String returns "rental" or "purchase".
func (k GrantKind) String() string {
	switch k {
	case GrantRental:
		return "rental"
	case GrantPurchase:
		return "purchase"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseGrantKind parses "rental" or "purchase".
func ParseGrantKind(s string) (GrantKind, error) {
	switch strings.ToLower(s) {
	case "rental":
		return GrantRental, nil
	case "purchase":
		return GrantPurchase, nil
	}
	return 0, fmt.Errorf("%w: unknown access kind %q", ErrInvalidGrantData, s)
}

// Rights is the access-rights bitset of a grant.
type Rights uint8

const (
	RightStream Rights = 1 << iota
	RightDownload

	rightsMask = RightStream | RightDownload
)

// Has reports whether every right in x is granted.
func (r Rights) Has(x Rights) bool { return r&x == x }

// String lists the granted rights.
func (r Rights) String() string {
	var parts []string
	if r.Has(RightStream) {
		parts = append(parts, "stream")
	}
	if r.Has(RightDownload) {
		parts = append(parts, "download")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// ParseRights parses a comma-separated list of "stream" and "download".
func ParseRights(s string) (Rights, error) {
	var r Rights
	for _, part := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "stream":
			r |= RightStream
		case "download":
			r |= RightDownload
		default:
			return 0, fmt.Errorf("%w: unknown right %q", ErrInvalidGrantData, part)
		}
	}
	return r, nil
}

// Grant is a non-transferable, time and rights scoped access record.
// It is created once and never mutated; closing it deletes it.
type Grant struct {
	Address   Address
	Bump      uint8
	ReleaseID string
	BuyerID   string
	Kind      GrantKind
	Rights    Rights
	CreatedAt int64 // unix seconds
	ExpiresAt int64 // unix seconds; 0 means no expiry
}

// Validate checks the grant's structural invariants.
func (g *Grant) Validate() error {
	if err := checkNormalized(g.ReleaseID); err != nil {
		return fmt.Errorf("release id: %w", err)
	}
	if err := checkNormalized(g.BuyerID); err != nil {
		return fmt.Errorf("buyer id: %w", err)
	}
	if g.Kind > GrantPurchase {
		return fmt.Errorf("%w: kind %d", ErrInvalidGrantData, g.Kind)
	}
	if g.Rights&^rightsMask != 0 {
		return fmt.Errorf("%w: rights %#x", ErrInvalidGrantData, uint8(g.Rights))
	}
	if g.ExpiresAt != 0 && g.ExpiresAt < g.CreatedAt {
		return fmt.Errorf("%w: expires before creation", ErrInvalidGrantData)
	}
	return nil
}

// Expired reports whether the grant has an expiry at or before now.
func (g *Grant) Expired(now time.Time) bool {
	return g.ExpiresAt != 0 && now.Unix() >= g.ExpiresAt
}
