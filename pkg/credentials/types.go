package credentials

// Credentials represents the stored sessions in credentials.toml, one per
// chat service base URL.
type Credentials struct {
	Version int                         `toml:"version"`
	Servers map[string]ServerCredential `toml:"servers"`
}

// ServerCredential holds the bearer token and the profile of the user it
// was issued to.
type ServerCredential struct {
	Token    string `toml:"token"`
	UserID   int64  `toml:"user_id,omitempty"`
	Username string `toml:"username,omitempty"`
	Email    string `toml:"email,omitempty"`
}
