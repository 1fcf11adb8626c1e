package chunk

import (
	"encoding/base32"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// id128Encoding is base32hex (RFC 4648) lowercase without padding. The
// alphabet 0-9a-v preserves lexicographic sort order, so the string form of
// a time-ordered 128-bit id sorts the same as the id itself.
var id128Encoding = base32.HexEncoding.WithPadding(base32.NoPadding)

// ChunkID is a 128-bit, time-ordered, generation-monotone identifier for a
// whole chunk (§3 "chunk_id").
type ChunkID [16]byte

// RowID is a 128-bit, time-ordered identifier for a single row, unique
// across every chunk in a store (§3 invariant 2). RowIds define a total
// order within a chunk and serve as the tie-breaker in latest-at and range
// queries (§4.4).
type RowID [16]byte

// idMonotonic wraps uuid.NewV7 with a per-type last-issued guard so that ids
// minted in rapid succession within one process are strictly increasing even
// when UUIDv7's own millisecond-resolution timestamp does not advance. This
// is the "monotone within one store instance" source required by §9's
// "RowId design" note.
type idMonotonic struct {
	mu   sync.Mutex
	last [16]byte
}

func (g *idMonotonic) next() [16]byte {
	g.mu.Lock()
	defer g.mu.Unlock()

	raw := uuid.Must(uuid.NewV7())
	id := [16]byte(raw)
	if bytesCompare(id[:], g.last[:]) <= 0 {
		id = incremented(g.last)
	}
	g.last = id
	return id
}

func bytesCompare(a, b []byte) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// incremented returns the smallest 128-bit value strictly greater than id,
// preserving id's leading (timestamp) bytes whenever possible.
func incremented(id [16]byte) [16]byte {
	out := id
	for i := len(out) - 1; i >= 0; i-- {
		out[i]++
		if out[i] != 0 {
			break
		}
	}
	return out
}

var (
	chunkIDGen idMonotonic
	rowIDGen   idMonotonic
)

// NewChunkID mints a fresh, monotone ChunkID.
func NewChunkID() ChunkID { return ChunkID(chunkIDGen.next()) }

// NewRowID mints a fresh, monotone RowID.
func NewRowID() RowID { return RowID(rowIDGen.next()) }

// ParseChunkID parses a 26-character base32hex string into a ChunkID.
func ParseChunkID(s string) (ChunkID, error) {
	b, err := parseID128(s)
	return ChunkID(b), err
}

// ParseRowID parses a 26-character base32hex string into a RowID.
func ParseRowID(s string) (RowID, error) {
	b, err := parseID128(s)
	return RowID(b), err
}

func parseID128(value string) ([16]byte, error) {
	if len(value) != 26 {
		return [16]byte{}, fmt.Errorf("invalid id length: %d (want 26)", len(value))
	}
	decoded, err := id128Encoding.DecodeString(strings.ToUpper(value))
	if err != nil {
		return [16]byte{}, fmt.Errorf("invalid id: %w", err)
	}
	var id [16]byte
	copy(id[:], decoded)
	return id, nil
}

func (id ChunkID) String() string { return strings.ToLower(id128Encoding.EncodeToString(id[:])) }
func (id RowID) String() string   { return strings.ToLower(id128Encoding.EncodeToString(id[:])) }

// Time returns the creation time embedded in a UUIDv7-derived id's first 48
// bits (milliseconds since the Unix epoch, big-endian).
func (id ChunkID) Time() time.Time { return id128Time(id) }
func (id RowID) Time() time.Time   { return id128Time(id) }

func id128Time(id [16]byte) time.Time {
	ms := int64(id[0])<<40 | int64(id[1])<<32 | int64(id[2])<<24 |
		int64(id[3])<<16 | int64(id[4])<<8 | int64(id[5])
	return time.UnixMilli(ms)
}

// Less orders two RowIds by their raw byte representation, which is
// equivalent to time order with a random/counter tie-break (§3 invariant 3).
func (id RowID) Less(other RowID) bool {
	return bytesCompare(id[:], other[:]) < 0
}

// Compare returns -1, 0, or 1 as id is less than, equal to, or greater than other.
func (id RowID) Compare(other RowID) int {
	return bytesCompare(id[:], other[:])
}
