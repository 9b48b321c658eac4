// Package account manages the user lifecycle: registration, login
// checks, credential updates and account deletion.
package account

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/KamilB91/medals/internal/models"
	"github.com/KamilB91/medals/internal/posts"
	"github.com/KamilB91/medals/internal/relation"
)

// PlaceholderUsername is the reserved account that takes over ownership
// of posts whose author deleted their account. It cannot be registered,
// deleted, followed or viewed as a profile.
const PlaceholderUsername = "account_deleted"

var (
	ErrInvalid        = errors.New("invalid account data")
	ErrBadCredentials = errors.New("email or password doesn't match")
	ErrNotFound       = errors.New("user not found")
)

type Manager struct {
	db            *sql.DB
	placeholderID int64
}

func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

// Bootstrap idempotently ensures the placeholder user and the seed user
// exist, and caches the placeholder's id for later deletions. Safe to
// call on every process start.
func (m *Manager) Bootstrap(seedUsername, seedEmail, seedPassword string) (*models.User, error) {
	// The placeholder gets a password hash no input can ever match.
	_, err := m.db.Exec(`INSERT OR IGNORE INTO users(username,email,password_hash,is_admin,created_at)
		VALUES(?,?,?,0,?)`, PlaceholderUsername, "none", "!", time.Now())
	if err != nil {
		return nil, fmt.Errorf("bootstrap placeholder: %w", err)
	}
	placeholder, err := m.ByUsername(PlaceholderUsername)
	if err != nil {
		return nil, fmt.Errorf("bootstrap placeholder: %w", err)
	}
	m.placeholderID = placeholder.ID

	if seedUsername != "" {
		if _, err := m.CreateUser(seedUsername, seedEmail, seedPassword, false); err != nil && !errors.Is(err, ErrInvalid) {
			return placeholder, fmt.Errorf("bootstrap seed user: %w", err)
		}
	}
	return placeholder, nil
}

// PlaceholderID returns the cached placeholder user id. Zero before a
// successful Bootstrap.
func (m *Manager) PlaceholderID() int64 {
	return m.placeholderID
}

// CreateUser stores a new user with a bcrypt hash of password. Empty
// fields and duplicate username or email fail with ErrInvalid.
func (m *Manager) CreateUser(username, email, password string, admin bool) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: all fields required", ErrInvalid)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	res, err := m.db.Exec(`INSERT INTO users(username,email,password_hash,is_admin,created_at)
		VALUES(?,?,?,?,?)`, username, email, string(hash), admin, now)
	if err != nil {
		// The only constraint on this insert is username/email uniqueness.
		return nil, fmt.Errorf("%w: username or email already taken", ErrInvalid)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.User{ID: id, Username: username, Email: email, PasswordHash: string(hash), Admin: admin, CreatedAt: now}, nil
}

// Register creates a regular user account.
func (m *Manager) Register(username, email, password string) (*models.User, error) {
	if strings.TrimSpace(username) == PlaceholderUsername {
		return nil, fmt.Errorf("%w: username is reserved", ErrInvalid)
	}
	return m.CreateUser(username, email, password, false)
}

// Authenticate checks email and password against the stored hash. An
// unknown email and a wrong password fail identically.
func (m *Manager) Authenticate(email, password string) (*models.User, error) {
	var u models.User
	err := m.db.QueryRow(`SELECT id, username, email, password_hash, is_admin, created_at
		FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Admin, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBadCredentials
	} else if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrBadCredentials
	}
	return &u, nil
}

// UpdateEmail changes the user's email after re-checking the current
// password.
func (m *Manager) UpdateEmail(userID int64, currentPassword, newEmail string) error {
	if err := m.checkPassword(userID, currentPassword); err != nil {
		return err
	}
	newEmail = strings.TrimSpace(newEmail)
	if newEmail == "" {
		return fmt.Errorf("%w: email required", ErrInvalid)
	}
	if _, err := m.db.Exec(`UPDATE users SET email=? WHERE id=?`, newEmail, userID); err != nil {
		return fmt.Errorf("%w: email already taken", ErrInvalid)
	}
	return nil
}

// UpdatePassword re-hashes and stores newPassword after re-checking the
// old one.
func (m *Manager) UpdatePassword(userID int64, oldPassword, newPassword string) error {
	if err := m.checkPassword(userID, oldPassword); err != nil {
		return err
	}
	if newPassword == "" {
		return fmt.Errorf("%w: password required", ErrInvalid)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = m.db.Exec(`UPDATE users SET password_hash=? WHERE id=?`, string(hash), userID)
	return err
}

func (m *Manager) checkPassword(userID int64, password string) error {
	var hash string
	err := m.db.QueryRow(`SELECT password_hash FROM users WHERE id=?`, userID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return ErrBadCredentials
	}
	return nil
}

// Delete removes the account in one transaction: posts are reassigned
// to the placeholder, follow and block edges in both directions go,
// sessions go, then the user row itself. The placeholder cannot be
// deleted.
func (m *Manager) Delete(userID int64) error {
	if userID == m.placeholderID {
		return fmt.Errorf("%w: cannot delete the reserved account", ErrInvalid)
	}
	if m.placeholderID == 0 {
		return errors.New("delete account: placeholder user not bootstrapped")
	}

	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := posts.ReassignOwner(tx, userID, m.placeholderID); err != nil {
		return fmt.Errorf("reassign posts: %w", err)
	}
	if err := relation.DeleteAllFor(tx, userID); err != nil {
		return fmt.Errorf("delete edges: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM sessions WHERE user_id=?`, userID); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM users WHERE id=?`, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return tx.Commit()
}

func (m *Manager) ByID(userID int64) (*models.User, error) {
	return m.one(`SELECT id, username, email, password_hash, is_admin, created_at
		FROM users WHERE id = ?`, userID)
}

func (m *Manager) ByUsername(username string) (*models.User, error) {
	return m.one(`SELECT id, username, email, password_hash, is_admin, created_at
		FROM users WHERE username = ?`, username)
}

func (m *Manager) one(q string, arg any) (*models.User, error) {
	var u models.User
	err := m.db.QueryRow(q, arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Admin, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &u, nil
}
