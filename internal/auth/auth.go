package auth

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/KamilB91/medals/internal/models"
)

const sessionCookie = "medals_session"

type Manager struct {
	db     *sql.DB
	maxAge time.Duration
}

func NewManager(db *sql.DB, maxAge time.Duration) *Manager {
	return &Manager{db: db, maxAge: maxAge}
}

func (m *Manager) Create(w http.ResponseWriter, userID int64) error {
	id := uuid.New().String()
	expires := time.Now().Add(m.maxAge)

	_, err := m.db.Exec(`INSERT INTO sessions(id,user_id,expires_at) VALUES(?,?,?)`, id, userID, expires)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
	return nil
}

func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) {
	c, _ := r.Cookie(sessionCookie)
	if c != nil && c.Value != "" {
		m.db.Exec(`DELETE FROM sessions WHERE id = ?`, c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Unix(0, 0),
	})
}

// DestroyAll drops every session belonging to userID. Used when the
// account itself goes away.
func (m *Manager) DestroyAll(userID int64) {
	m.db.Exec(`DELETE FROM sessions WHERE user_id = ?`, userID)
}

func (m *Manager) CurrentUserID(r *http.Request) (int64, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return 0, false
	}
	var uid int64
	var exp time.Time
	err = m.db.QueryRow(`SELECT user_id, expires_at FROM sessions WHERE id = ?`, c.Value).Scan(&uid, &exp)
	if err != nil || time.Now().After(exp) {
		return 0, false
	}
	return uid, true
}

// CurrentUser resolves the request's session to a full user record.
// The second return is false for anonymous requests and for sessions
// whose user no longer exists.
func (m *Manager) CurrentUser(r *http.Request) (*models.User, bool) {
	uid, ok := m.CurrentUserID(r)
	if !ok {
		return nil, false
	}
	var u models.User
	err := m.db.QueryRow(`SELECT id, username, email, password_hash, is_admin, created_at
		FROM users WHERE id = ?`, uid).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Admin, &u.CreatedAt)
	if err != nil {
		return nil, false
	}
	return &u, true
}
