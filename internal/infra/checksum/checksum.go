// Package checksum implements the gateway's request signing scheme:
// hex(sha256(payload + apiPath + saltKey)) sent as "<hex>###<saltIndex>".
package checksum

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
)

const (
	PayPath    = "/pg/v1/pay"
	StatusPath = "/pg/v1/status"

	separator = "###"
)

func digest(payload, apiPath, saltKey string) [sha256.Size]byte {
	return sha256.Sum256([]byte(payload + apiPath + saltKey))
}

// Sign returns the lowercase hex signature of payload for apiPath.
func Sign(payload, apiPath, saltKey string) string {
	sum := digest(payload, apiPath, saltKey)
	return hex.EncodeToString(sum[:])
}

// Header formats the X-VERIFY header value.
func Header(signature string, saltIndex int) string {
	return signature + separator + strconv.Itoa(saltIndex)
}

// ParseHeader splits "<hex>###<index>". A value without separator is returned as the signature
// with hasIndex false.
func ParseHeader(v string) (signature string, index string, hasIndex bool) {
	v = strings.TrimSpace(v)
	sig, idx, found := strings.Cut(v, separator)
	return sig, idx, found
}

// Verify recomputes the signature and compares it to provided in constant time.
// Hex case is ignored; malformed hex never matches.
func Verify(payload, apiPath, saltKey, provided string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(provided))
	if err != nil || len(got) != sha256.Size {
		return false
	}
	want := digest(payload, apiPath, saltKey)
	return subtle.ConstantTimeCompare(got, want[:]) == 1
}
