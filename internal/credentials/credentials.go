// Package credentials holds the username/password pair exchanged during
// a KLAP handshake, along with the well-known pairs devices fall back to.
package credentials

// Credentials is a username/password pair. Either field may be empty.
type Credentials struct {
	Username string
	Password string
}

// KasaSetup is the hardcoded pair newer Tapo/Kasa firmware accepts when a
// device has been linked to the cloud but the caller doesn't know the
// account credentials.
var KasaSetup = Credentials{Username: "kasa@tp-link.net", Password: "kasaSetup"}

// Blank is the pair a device that has never been cloud-linked expects.
var Blank = Credentials{Username: "", Password: ""}

// Equal reports whether two credential pairs carry the same username and
// password.
func (c Credentials) Equal(other Credentials) bool {
	return c.Username == other.Username && c.Password == other.Password
}

// IsBlank reports whether c is the Blank credential pair.
func (c Credentials) IsBlank() bool {
	return c.Equal(Blank)
}
