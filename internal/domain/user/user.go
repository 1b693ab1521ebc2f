package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested user does not exist.
var ErrNotFound = errors.New("user not found")

// User is the identity record consumed by the fulfillment engine. Accounts
// are owned by the identity service; this package only reads them.
type User struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// Projection is the reduced user view embedded in order representations and
// domain events.
type Projection struct {
	ID    string
	Name  string
	Email string
}

// Project returns the reduced view of u.
func (u User) Project() Projection {
	return Projection{ID: u.ID, Name: u.Name, Email: u.Email}
}

// Repository defines read access to user records.
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
}
