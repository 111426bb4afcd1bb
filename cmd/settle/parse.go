package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"

	"github.com/bitfsorg/libsettle-go/collectible"
	"github.com/bitfsorg/libsettle-go/escrow"
	"github.com/bitfsorg/libsettle-go/ledger"
)

func parsePubKey(s string) (*ec.PublicKey, error) {
	pub, err := ec.PublicKeyFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid public key %q: %w", s, err)
	}
	return pub, nil
}

func parseAmount(s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

func parseRefs(values []string) ([]ledger.Ref, error) {
	refs := make([]ledger.Ref, 0, len(values))
	for _, v := range values {
		ref, err := ledger.ParseRef(strings.TrimSpace(v))
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// parseSplits reads "recipient:reward_recipient:amount" triples.
func parseSplits(values []string) ([]escrow.Split, error) {
	out := make([]escrow.Split, 0, len(values))
	for _, v := range values {
		parts := strings.Split(v, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid split %q: want recipient:reward:amount", v)
		}
		refs, err := parseRefs(parts[:2])
		if err != nil {
			return nil, fmt.Errorf("invalid split %q: %w", v, err)
		}
		amount, err := parseAmount(parts[2])
		if err != nil {
			return nil, err
		}
		out = append(out, escrow.Split{Recipient: refs[0], RewardRecipient: refs[1], Amount: amount})
	}
	return out, nil
}

// parseCreators reads "pubkey:share" pairs.
func parseCreators(values []string) ([]collectible.Creator, error) {
	out := make([]collectible.Creator, 0, len(values))
	for _, v := range values {
		key, share, ok := strings.Cut(v, ":")
		if !ok {
			return nil, fmt.Errorf("invalid creator %q: want pubkey:share", v)
		}
		raw, err := hex.DecodeString(key)
		if err != nil {
			return nil, fmt.Errorf("invalid creator key %q: %w", key, err)
		}
		n, err := strconv.ParseUint(share, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid creator share %q: %w", share, err)
		}
		out = append(out, collectible.Creator{Key: raw, Share: uint8(n)})
	}
	return out, nil
}

// parseExpiry accepts an RFC 3339 time, a duration from now or unix seconds.
// Empty means no expiry.
func parseExpiry(s string, now time.Time) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Unix(), nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(d).Unix(), nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	return 0, fmt.Errorf("invalid expiry %q", s)
}

func parseTerms(kind, rights, expires string, now time.Time) (escrow.AccessTerms, error) {
	k, err := escrow.ParseGrantKind(kind)
	if err != nil {
		return escrow.AccessTerms{}, err
	}
	r, err := escrow.ParseRights(rights)
	if err != nil {
		return escrow.AccessTerms{}, err
	}
	exp, err := parseExpiry(expires, now)
	if err != nil {
		return escrow.AccessTerms{}, err
	}
	return escrow.AccessTerms{Kind: k, Rights: r, ExpiresAt: exp}, nil
}
