package escrow

import (
	"encoding/binary"
	"fmt"

	"github.com/bitfsorg/libsettle-go/ledger"
)

const (
	codecVersion = 1
	idFieldSize  = 1 + IDSize                          // len(1) + id(32)
	splitSize    = ledger.RefSize + ledger.RefSize + 8 // recipient(20) + reward(20) + amount(8)
	markerSize   = 48

	// EntrySize is the fixed serialized size of every entry. The split
	// table is always laid out at full capacity so the storage deposit of
	// an entry never depends on its contents.
	EntrySize = 1 + // version
		AddressSize + 1 + // address + bump
		idFieldSize*2 + // release id, buyer id
		8 + // fee
		1 + splitSize*MaxSplits + // split count + table
		8 + // total
		1 + // flags
		8 + // purchase date
		ledger.RefSize + // custody
		1 + 1 + 1 + 1 + 8 + // delivery, kind, rights, has expiry, expiry
		1 + markerSize // collectible marker

	// GrantSize is the fixed serialized size of an access grant.
	GrantSize = 1 + // version
		AddressSize + 1 +
		idFieldSize*2 +
		1 + 1 + // kind, rights
		8 + // created at
		1 + 8 // has expiry, expiry
)

type writer struct {
	buf []byte
	off int
}

func (w *writer) bytes(b []byte) { w.off += copy(w.buf[w.off:], b) }

func (w *writer) u8(b byte) {
	w.buf[w.off] = b
	w.off++
}

func (w *writer) u64(v uint64) {
	binary.BigEndian.PutUint64(w.buf[w.off:], v)
	w.off += 8
}

func (w *writer) id(s string) {
	w.u8(byte(len(s)))
	copy(w.buf[w.off:w.off+IDSize], s)
	w.off += IDSize
}

type reader struct {
	data []byte
	off  int
}

func (r *reader) bytes(dst []byte) { r.off += copy(dst, r.data[r.off:r.off+len(dst)]) }

func (r *reader) u8() byte {
	b := r.data[r.off]
	r.off++
	return b
}

func (r *reader) u64() uint64 {
	v := binary.BigEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v
}

func (r *reader) id() (string, error) {
	n := int(r.u8())
	if n > IDSize {
		return "", fmt.Errorf("id length %d", n)
	}
	s := string(r.data[r.off : r.off+n])
	r.off += IDSize
	return s, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// MarshalEntry serializes e to its fixed EntrySize layout.
func MarshalEntry(e *Entry) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	w := &writer{buf: make([]byte, EntrySize)}
	w.u8(codecVersion)
	w.bytes(e.Address[:])
	w.u8(e.Bump)
	w.id(e.ReleaseID)
	w.id(e.BuyerID)
	w.u64(e.Fee)
	w.u8(byte(len(e.Splits)))
	for i := 0; i < MaxSplits; i++ {
		if i < len(e.Splits) {
			s := e.Splits[i]
			w.bytes(s.Recipient[:])
			w.bytes(s.RewardRecipient[:])
			w.u64(s.Amount)
		} else {
			w.off += splitSize
		}
	}
	w.u64(e.Total)
	w.u8(byte(e.Flags))
	w.u64(uint64(e.PurchaseDate))
	w.bytes(e.Custody[:])
	w.u8(byte(e.Delivery))
	w.u8(byte(e.Access.Kind))
	w.u8(byte(e.Access.Rights))
	w.u8(boolByte(e.Access.ExpiresAt != 0))
	w.u64(uint64(e.Access.ExpiresAt))
	w.u8(byte(len(e.Collectible)))
	copy(w.buf[w.off:w.off+markerSize], e.Collectible)
	return w.buf, nil
}

// UnmarshalEntry deserializes an entry produced by MarshalEntry.
func UnmarshalEntry(data []byte) (*Entry, error) {
	if len(data) != EntrySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidEntryData, EntrySize, len(data))
	}
	r := &reader{data: data}
	if v := r.u8(); v != codecVersion {
		return nil, fmt.Errorf("%w: version %d", ErrInvalidEntryData, v)
	}
	e := &Entry{}
	r.bytes(e.Address[:])
	e.Bump = r.u8()
	var err error
	if e.ReleaseID, err = r.id(); err != nil {
		return nil, fmt.Errorf("%w: release %w", ErrInvalidEntryData, err)
	}
	if e.BuyerID, err = r.id(); err != nil {
		return nil, fmt.Errorf("%w: buyer %w", ErrInvalidEntryData, err)
	}
	e.Fee = r.u64()
	n := int(r.u8())
	if n > MaxSplits {
		return nil, fmt.Errorf("%w: %d splits", ErrInvalidEntryData, n)
	}
	e.Splits = make([]Split, n)
	for i := 0; i < MaxSplits; i++ {
		if i < n {
			r.bytes(e.Splits[i].Recipient[:])
			r.bytes(e.Splits[i].RewardRecipient[:])
			e.Splits[i].Amount = r.u64()
		} else {
			r.off += splitSize
		}
	}
	e.Total = r.u64()
	e.Flags = Flags(r.u8())
	e.PurchaseDate = int64(r.u64())
	r.bytes(e.Custody[:])
	e.Delivery = Delivery(r.u8())
	e.Access.Kind = GrantKind(r.u8())
	e.Access.Rights = Rights(r.u8())
	hasExpiry := r.u8() == 1
	expiry := int64(r.u64())
	if hasExpiry {
		e.Access.ExpiresAt = expiry
	}
	m := int(r.u8())
	if m > markerSize {
		return nil, fmt.Errorf("%w: marker length %d", ErrInvalidEntryData, m)
	}
	e.Collectible = ledger.AssetID(r.data[r.off : r.off+m])
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEntryData, err)
	}
	return e, nil
}

// MarshalGrant serializes g to its fixed GrantSize layout.
func MarshalGrant(g *Grant) ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	w := &writer{buf: make([]byte, GrantSize)}
	w.u8(codecVersion)
	w.bytes(g.Address[:])
	w.u8(g.Bump)
	w.id(g.ReleaseID)
	w.id(g.BuyerID)
	w.u8(byte(g.Kind))
	w.u8(byte(g.Rights))
	w.u64(uint64(g.CreatedAt))
	w.u8(boolByte(g.ExpiresAt != 0))
	w.u64(uint64(g.ExpiresAt))
	return w.buf, nil
}

// UnmarshalGrant deserializes a grant produced by MarshalGrant.
func UnmarshalGrant(data []byte) (*Grant, error) {
	if len(data) != GrantSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidGrantData, GrantSize, len(data))
	}
	r := &reader{data: data}
	if v := r.u8(); v != codecVersion {
		return nil, fmt.Errorf("%w: version %d", ErrInvalidGrantData, v)
	}
	g := &Grant{}
	r.bytes(g.Address[:])
	g.Bump = r.u8()
	var err error
	if g.ReleaseID, err = r.id(); err != nil {
		return nil, fmt.Errorf("%w: release %w", ErrInvalidGrantData, err)
	}
	if g.BuyerID, err = r.id(); err != nil {
		return nil, fmt.Errorf("%w: buyer %w", ErrInvalidGrantData, err)
	}
	g.Kind = GrantKind(r.u8())
	g.Rights = Rights(r.u8())
	g.CreatedAt = int64(r.u64())
	hasExpiry := r.u8() == 1
	expiry := int64(r.u64())
	if hasExpiry {
		g.ExpiresAt = expiry
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGrantData, err)
	}
	return g, nil
}
