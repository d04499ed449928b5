// Package identity supplies the two taker identities a session can run
// under: an authenticated student holding a bearer token, or a guest
// known only by a contact tuple.
package identity

import (
	"github.com/vigil-exam/vigil/internal/attempt"
	"github.com/vigil-exam/vigil/internal/model"
)

// Static is a fixed identity, resolved once before the session starts.
type Static struct {
	ident attempt.Identity
}

// Identity implements attempt.IdentityProvider.
func (s Static) Identity() attempt.Identity { return s.ident }

// Student builds the identity of an authenticated student from an issued
// bearer token.
func Student(token, displayName string) Static {
	return Static{ident: attempt.Identity{
		Kind:        model.SubjectKindStudent,
		Token:       token,
		DisplayName: displayName,
	}}
}

// Guest builds a guest identity from a contact tuple. The record server
// issues the bearer token when the attempt starts.
func Guest(name, email string) Static {
	return Static{ident: attempt.Identity{
		Kind:        model.SubjectKindGuest,
		Guest:       &model.GuestInfo{Name: name, Email: email},
		DisplayName: name,
	}}
}
