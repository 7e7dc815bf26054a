// Package textutil implements the identifier, slug, and tokenization
// utilities shared by every store-engine component: ID generation, slug
// conversion for filenames, and the stop-word/stemming tokenizer used by
// the graph builder and the search index.
package textutil

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/mwaldstein/qipu/internal/qipuerrors"
)

const (
	idPrefix  = "qp-"
	maxTries  = 16
	idBits    = 40
	base36Len = 8 // ceil(40 bits / log2(36)) rounded up for fixed-width ids
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// IDExists reports whether id is already present in a store. Callers pass
// a closure over whatever index (SQLite, in-memory) backs the store.
type IDExists func(id string) (bool, error)

// GenerateID produces a new "qp-" prefixed, lowercase base-36 identifier
// encoding a 40-bit random value, retrying on collision up to sixteen
// times before failing.
func GenerateID(exists IDExists) (string, error) {
	for try := 0; try < maxTries; try++ {
		id, err := randomID()
		if err != nil {
			return "", qipuerrors.Wrap(qipuerrors.Io, err, "generate random id")
		}
		if exists == nil {
			return id, nil
		}
		found, err := exists(id)
		if err != nil {
			return "", err
		}
		if !found {
			return id, nil
		}
	}
	return "", qipuerrors.Newf(qipuerrors.Invalid, "failed to generate a unique id after %d attempts", maxTries)
}

func randomID() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:5]); err != nil {
		return "", err
	}
	v := binary.BigEndian.Uint64(buf[:]) >> (64 - idBits)
	return idPrefix + encodeBase36(v), nil
}

func encodeBase36(v uint64) string {
	out := make([]byte, base36Len)
	for i := base36Len - 1; i >= 0; i-- {
		out[i] = base36Alphabet[v%36]
		v /= 36
	}
	return string(out)
}

// ValidID reports whether s looks like a well-formed qipu identifier
// ("qp-" followed by one or more lowercase base-36 characters). It does
// not check existence in any store.
func ValidID(s string) bool {
	if len(s) <= len(idPrefix) || s[:len(idPrefix)] != idPrefix {
		return false
	}
	for _, c := range s[len(idPrefix):] {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')) {
			return false
		}
	}
	return true
}

// RequireValidID returns a descriptive *qipuerrors.Error if s is not a
// well-formed id, nil otherwise.
func RequireValidID(s string) error {
	if !ValidID(s) {
		return qipuerrors.Newf(qipuerrors.Invalid, "malformed note id %q", s).WithToken(s)
	}
	return nil
}
