// Package posts owns creation and lookup of posts. A post belongs to
// exactly one user at a time; ownership moves to the placeholder user
// when the author's account is deleted, content never changes.
package posts

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KamilB91/medals/internal/models"
)

var (
	ErrEmptyContent = errors.New("post content is empty")
	ErrNotFound     = errors.New("post not found")
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create stores a new post for userID. Content is trimmed and must be
// non-empty after trimming.
func (s *Store) Create(userID int64, content string) (*models.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	now := time.Now()
	res, err := s.db.Exec(`INSERT INTO posts(user_id,content,created_at) VALUES(?,?,?)`,
		userID, content, now)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Post{ID: id, UserID: userID, Content: content, CreatedAt: now}, nil
}

func (s *Store) ByID(id int64) (*models.Post, error) {
	var p models.Post
	err := s.db.QueryRow(`SELECT p.id, p.user_id, p.content, p.created_at, u.username
		FROM posts p JOIN users u ON u.id = p.user_id WHERE p.id = ?`, id).
		Scan(&p.ID, &p.UserID, &p.Content, &p.CreatedAt, &p.Author)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &p, nil
}

// ReassignOwner moves every post owned by fromUserID to toUserID.
// Runs inside the account-deletion transaction.
func ReassignOwner(tx *sql.Tx, fromUserID, toUserID int64) error {
	_, err := tx.Exec(`UPDATE posts SET user_id=? WHERE user_id=?`, toUserID, fromUserID)
	return err
}
