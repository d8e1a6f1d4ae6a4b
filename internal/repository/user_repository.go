package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"
)

// User mirrors the 'users' table.  Only administrators log in to this
// service; customers book without an account.
type User struct {
    ID           uint64
    Email        string
    PasswordHash string
    Role         string
    CreatedAt    time.Time
}

// UserRepo provides lookups against the users table for the admin
// login flow.
type UserRepo struct {
    db *sql.DB
}

// NewUserRepo returns a UserRepo bound to the given database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a user and populates the generated ID.
func (r *UserRepo) Create(ctx context.Context, u *User) error {
    const q = `INSERT INTO users (email, password_hash, role) VALUES (?, ?, ?)`
    result, err := r.db.ExecContext(ctx, q, strings.ToLower(strings.TrimSpace(u.Email)), u.PasswordHash, u.Role)
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    u.ID = uint64(id)
    return nil
}

// GetByEmail loads a user by email (case-insensitive).  Returns
// ErrUserNotFound when no user matches.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
    const q = `SELECT id, email, password_hash, role, created_at FROM users WHERE email = ?`
    var u User
    err := r.db.QueryRowContext(ctx, q, strings.ToLower(strings.TrimSpace(email))).Scan(
        &u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt,
    )
    if err != nil {
        if err == sql.ErrNoRows {
            return nil, ErrUserNotFound
        }
        return nil, err
    }
    return &u, nil
}
