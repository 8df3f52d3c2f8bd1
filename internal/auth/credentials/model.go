package credentials

// Account is the user row a password credential belongs to.
type Account struct {
	UserID string
	Email  string
}
