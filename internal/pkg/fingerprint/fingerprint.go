package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Document hashes the chunk text of a document together with its filename.
// The result keys idempotent outline upserts.
func Document(filename string, chunks []string) string {
	h := sha256.New()
	h.Write([]byte(filename))
	for _, c := range chunks {
		h.Write([]byte{0})
		h.Write([]byte(c))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Section derives a stable section id from the owning document fingerprint
// and the section ordinal.
func Section(documentFingerprint string, ordinal int) string {
	sum := sha256.Sum256([]byte(documentFingerprint + ":" + strconv.Itoa(ordinal)))
	return "sec_" + hex.EncodeToString(sum[:])[:20]
}

// Text hashes whitespace- and case-normalized text. Two prompts that differ
// only in spacing or case share a fingerprint.
func Text(s string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(s)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
