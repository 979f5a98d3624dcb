package customer

import "strings"

// Address is one of a shopper's saved addresses.
type Address struct {
	City    string
	Country string
	ZipCode string
	State   string
}

// User is the shopper profile supplied by the authentication/session
// collaborator. The analytics layer only reads it and forwards projections;
// it never mutates a User.
type User struct {
	ID        string
	Username  string
	Email     string
	FirstName string
	LastName  string
	Gender    string
	Age       int
	// Persona is an underscore-delimited tag list, e.g. "apparel_housewares".
	Persona string
	// SignUpDate and LastSignInDate are forwarded verbatim in the format the
	// user service produced them; empty means unknown.
	SignUpDate     string
	LastSignInDate string
	Addresses      []Address
}

// PersonaTags splits the underscore-delimited persona into individual tags.
func (u *User) PersonaTags() []string {
	return strings.Split(u.Persona, "_")
}

// PrimaryAddress returns the shopper's first address, if any.
func (u *User) PrimaryAddress() (Address, bool) {
	if len(u.Addresses) == 0 {
		return Address{}, false
	}
	return u.Addresses[0], true
}
