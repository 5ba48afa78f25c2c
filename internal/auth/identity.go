// internal/auth/identity.go
package auth

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxNameLength = 32
	MaxIDLength   = 64
)

// ErrInvalidIdentity is returned when a client-supplied id is unusable.
var ErrInvalidIdentity = errors.New("invalid player id")

// Request is what a connection presents when it binds an identity.
type Request struct {
	Name  string // display name from setUsername
	ID    string // optional persisted profile id
	Token string // player token from the upgrade request cookie, if any
}

// Source records which input produced an Identity's id.
type Source string

const (
	SourceProfile Source = "profile"
	SourceToken   Source = "token"
	SourceMinted  Source = "minted"
)

// Identity is a resolved player. ID is canonical across reconnects; Name is
// display only.
type Identity struct {
	ID     string
	Name   string
	Source Source
}

// Resolver maps an inbound connection to a stable player identity.
type Resolver struct {
	tokens *Tokens
	newID  func() string
}

// NewResolver returns a resolver. tokens may be nil, in which case presented
// tokens are ignored.
func NewResolver(tokens *Tokens) *Resolver {
	return &Resolver{tokens: tokens, newID: uuid.NewString}
}

// Resolve picks the id from, in order: an explicit profile id, a valid player
// token, a freshly minted uuid. Invalid tokens fall through to minting.
func (r *Resolver) Resolve(req Request) (Identity, error) {
	var ident Identity

	switch id := strings.TrimSpace(req.ID); {
	case id != "":
		if err := validateID(id); err != nil {
			return Identity{}, err
		}
		ident.ID, ident.Source = id, SourceProfile
	case req.Token != "" && r.tokens != nil:
		if sub, err := r.tokens.Verify(req.Token); err == nil {
			ident.ID, ident.Source = sub, SourceToken
		}
	}
	if ident.ID == "" {
		ident.ID, ident.Source = r.newID(), SourceMinted
	}

	ident.Name = CleanName(req.Name)
	if ident.Name == "" {
		ident.Name = "Player-" + shortID(ident.ID)
	}
	return ident, nil
}

// CleanName trims whitespace, strips control characters and caps the length.
func CleanName(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = string([]rune(name)[:MaxNameLength])
	}
	return strings.TrimSpace(name)
}

func validateID(id string) error {
	if len(id) > MaxIDLength || !utf8.ValidString(id) {
		return ErrInvalidIdentity
	}
	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return ErrInvalidIdentity
		}
	}
	return nil
}

func shortID(id string) string {
	if r := []rune(id); len(r) > 4 {
		return string(r[:4])
	}
	return id
}
