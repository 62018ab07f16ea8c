package orchestrate

import (
	"strings"

	"github.com/google/uuid"
)

const (
	idLabelLength  = 15
	idSuffixLength = 6
	idAlphabet     = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// newRequestID derives an identifier from the first parameter value for UI
// scanability, plus a random base62 suffix (just under 6 bits per character,
// so six characters carry well over 32 bits of entropy). Uniqueness rests on
// the suffix alone; the label part is cosmetic. The label is cut at 15
// runes, never mid-rune: the ID is the lookup key and must survive a JSON
// round-trip byte for byte.
func newRequestID(params []Parameter) string {
	label := ""
	if len(params) > 0 {
		label = strings.TrimSpace(params[0].Value)
	}
	if runes := []rune(label); len(runes) > idLabelLength {
		label = string(runes[:idLabelLength])
	}
	return label + randomSuffix(idSuffixLength)
}

func randomSuffix(n int) string {
	entropy := uuid.New()
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = idAlphabet[int(entropy[i])%len(idAlphabet)]
	}
	return string(out)
}
