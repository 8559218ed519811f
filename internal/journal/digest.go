package journal

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const domainContent = "quill/content/v1"

// ContentDigest returns a cheap fingerprint used to detect no-op edits.
//
// With ignoreWhitespace set, runs of whitespace collapse to a single space
// before hashing, so edits that only touch spacing produce the same digest.
func ContentDigest(content string, ignoreWhitespace bool) string {
	content = NormalizeContent(content)
	if ignoreWhitespace {
		content = strings.Join(strings.Fields(content), " ")
	}
	return hashWithDomain(domainContent, []byte(content))
}

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
