package rules

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a stable content hash of the ordered plan with item ids
// stripped: two lists with the same rules in the same order fingerprint
// identically regardless of authoring ids or field order on the wire.
func (l List) Fingerprint() string {
	h := sha256.New()
	for _, item := range l {
		b, err := marshalRule(item.Rule, "")
		if err != nil {
			// Rule parameter types marshal without error by construction;
			// fold the failure into the hash rather than panicking.
			b = []byte(item.Rule.Kind())
		}
		h.Write(b)
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
