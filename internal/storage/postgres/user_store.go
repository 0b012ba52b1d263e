package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/giridharan-7/my-paytm/internal/interfaces"
	"github.com/giridharan-7/my-paytm/internal/models"
	"github.com/giridharan-7/my-paytm/internal/wallet"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) CreateUser(ctx context.Context, u models.User) error {
	const query = `INSERT INTO users (id, email, first_name, last_name, password_hash, created_at)
		VALUES ($1, lower($2), $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, query, u.ID, u.Email, u.FirstName, u.LastName, u.PasswordHash, u.CreatedAt)
	if isUniqueViolation(err) {
		return wallet.ErrAlreadyExists
	}
	return err
}

func (s *UserStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT id, email, first_name, last_name, password_hash, created_at
		FROM users WHERE email = lower($1)`
	return s.scanUser(s.db.QueryRowContext(ctx, query, email))
}

func (s *UserStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, email, first_name, last_name, password_hash, created_at
		FROM users WHERE id = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

func (s *UserStore) UpdateUser(ctx context.Context, id string, upd models.UserUpdate) error {
	const query = `UPDATE users SET
			first_name = coalesce($2, first_name),
			last_name = coalesce($3, last_name),
			password_hash = coalesce($4, password_hash)
		WHERE id = $1`
	res, err := s.db.ExecContext(ctx, query, id, upd.FirstName, upd.LastName, upd.PasswordHash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return wallet.ErrAccountNotFound
	}
	return nil
}

func (s *UserStore) SearchUsers(ctx context.Context, filter string) ([]models.User, error) {
	const query = `SELECT id, email, first_name, last_name, password_hash, created_at
		FROM users
		WHERE first_name ILIKE '%' || $1 || '%' OR last_name ILIKE '%' || $1 || '%'
		ORDER BY email`
	rows, err := s.db.QueryContext(ctx, query, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *UserStore) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wallet.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

var _ interfaces.UserStore = (*UserStore)(nil)
