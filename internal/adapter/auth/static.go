// Package auth holds Authenticator implementations for the transports.
package auth

import (
	"crypto/subtle"

	"github.com/rl1809/library-lending/internal/port"
)

// Static accepts a single configured username and password.
type Static struct {
	username []byte
	password []byte
}

var _ port.Authenticator = Static{}

func NewStatic(username, password string) Static {
	return Static{username: []byte(username), password: []byte(password)}
}

func (s Static) Authenticate(username, password string) bool {
	if len(s.username) == 0 {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), s.username) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), s.password) == 1
	return userOK && passOK
}
