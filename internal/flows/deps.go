package flows

// Deps groups the flow dependency sets the Engine builds once at Build time.
type Deps struct {
	Credentials CredentialDeps
	Token       TokenDeps
}
