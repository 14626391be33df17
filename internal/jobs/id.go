package jobs

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"
)

// Job ids are ULIDs: a 48-bit millisecond timestamp followed by 80 random
// bits, written as 26 Crockford base32 characters so ids sort by creation.

const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var (
	idMu    sync.Mutex
	lastMs  uint64
	lastSeq uint16
)

// NewID returns a new ULID. Ids created in the same millisecond carry an
// increasing sequence in their first random bytes.
func NewID() string {
	return newIDAt(time.Now())
}

func newIDAt(t time.Time) string {
	idMu.Lock()
	ms := uint64(t.UnixMilli())
	if ms == lastMs {
		lastSeq++
	} else {
		lastMs, lastSeq = ms, 0
	}
	seq := lastSeq
	idMu.Unlock()

	var b [16]byte
	binary.BigEndian.PutUint64(b[0:8], ms<<16)
	_, _ = rand.Read(b[6:])
	binary.BigEndian.PutUint16(b[6:8], seq)
	return encodeBase32(b)
}

// encodeBase32 writes 128 bits as 26 five-bit groups, most significant first.
// The first character carries only the top three bits.
func encodeBase32(b [16]byte) string {
	hi := binary.BigEndian.Uint64(b[0:8])
	lo := binary.BigEndian.Uint64(b[8:16])

	var out [26]byte
	for i := 25; i >= 0; i-- {
		out[i] = crockford[lo&31]
		lo = lo>>5 | hi<<59
		hi >>= 5
	}
	return string(out[:])
}
