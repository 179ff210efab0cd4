package users

type UserRepo interface {
	Upsert(user *User) error
	Delete(id string) error
	GetByID(id string) (*User, error)
	// GetByIdentifier looks a user up by email or username.
	GetByIdentifier(identifier string) (*User, error)
	List(offset, limit int) ([]*User, error)
}
