package port

// Authenticator is the credential check supplied by the host application.
type Authenticator interface {
	Authenticate(username, password string) bool
}
