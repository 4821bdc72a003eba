package models

// Identity is what a session knows about its user. Email is the stable
// identifier used for task ownership and comment authorship.
type Identity struct {
	Email string
	Name  string
}

// Is reports whether email identifies this user. A nil identity never
// matches anything.
func (i *Identity) Is(email string) bool {
	return i != nil && i.Email != "" && i.Email == email
}
