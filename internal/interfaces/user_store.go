package interfaces

import (
	"context"

	"github.com/giridharan-7/my-paytm/internal/models"
)

type UserStore interface {
	// CreateUser fails with wallet.ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u models.User) error

	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id string) (*models.User, error)

	UpdateUser(ctx context.Context, id string, upd models.UserUpdate) error

	// SearchUsers matches filter case-insensitively against first and last
	// names; an empty filter returns everyone.
	SearchUsers(ctx context.Context, filter string) ([]models.User, error)
}
