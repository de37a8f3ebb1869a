// Package idgen generates the public identifiers used at every external
// boundary: prefixed entity ids (UUIDv4 hex, dashes stripped) and the 24-char
// hook tokens embedded in capture URLs.
package idgen

import (
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	PrefixApp      = "app"
	PrefixEndpoint = "end"
	PrefixEvent    = "evt"
	PrefixDelivery = "dlv"
)

const (
	idHexLength     = 32
	HookTokenLength = 24

	hookTokenAlphabet = "0123456789abcdef"
)

var (
	idRe        = regexp.MustCompile(`^[a-z]+_[0-9a-f]{32}$`)
	hookTokenRe = regexp.MustCompile(`^[0-9a-f]{24}$`)
)

func newID(prefix string) string {
	id := uuid.New()
	return prefix + "_" + hex.EncodeToString(id[:])
}

func App() string      { return newID(PrefixApp) }
func Endpoint() string { return newID(PrefixEndpoint) }
func Event() string    { return newID(PrefixEvent) }
func Delivery() string { return newID(PrefixDelivery) }

// HookToken returns a new lowercase hex token for a capture URL.
func HookToken() string {
	token, err := gonanoid.Generate(hookTokenAlphabet, HookTokenLength)
	if err != nil {
		// crypto/rand is out; fall back to uuid bytes
		id := uuid.New()
		return hex.EncodeToString(id[:])[:HookTokenLength]
	}
	return token
}

// Valid reports whether id is a well-formed public id with the given prefix.
func Valid(prefix, id string) bool {
	return strings.HasPrefix(id, prefix+"_") && idRe.MatchString(id)
}

// ValidHookToken reports whether s has the capture URL token shape.
func ValidHookToken(s string) bool {
	return hookTokenRe.MatchString(s)
}
