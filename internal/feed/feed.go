// Package feed builds the post streams shown to a viewer, applying the
// follow and block rules.
package feed

import (
	"database/sql"
	"errors"

	"github.com/KamilB91/medals/internal/models"
)

// ErrNotFound covers both a username that does not exist and a profile
// hidden from the viewer by a block. The two cases are deliberately
// indistinguishable so block state does not leak.
var ErrNotFound = errors.New("stream not found")

// streamLimit caps user-scoped streams. The anonymous global stream is
// uncapped.
const streamLimit = 100

type Builder struct {
	db          *sql.DB
	placeholder string
}

// NewBuilder returns a Builder. placeholder is the reserved
// deleted-account username, which is never a valid stream target.
func NewBuilder(db *sql.DB, placeholder string) *Builder {
	return &Builder{db: db, placeholder: placeholder}
}

// Global returns every post, newest first. Shown to anonymous viewers.
func (b *Builder) Global() ([]models.Post, error) {
	return b.collect(`SELECT p.id, p.user_id, p.content, p.created_at, u.username
		FROM posts p JOIN users u ON u.id = p.user_id
		ORDER BY p.created_at DESC, p.id DESC`)
}

// Stream returns the aggregated stream for viewerID: the viewer's own
// posts plus posts by followed users, excluding posts by anyone in a
// block relationship with the viewer in either direction. Block always
// wins over follow.
func (b *Builder) Stream(viewerID int64) ([]models.Post, error) {
	return b.collect(`SELECT p.id, p.user_id, p.content, p.created_at, u.username
		FROM posts p JOIN users u ON u.id = p.user_id
		WHERE (p.user_id = ?
			OR p.user_id IN (SELECT to_id FROM follows WHERE from_id = ?))
		AND p.user_id NOT IN (SELECT to_id FROM blocks WHERE from_id = ?)
		AND p.user_id NOT IN (SELECT from_id FROM blocks WHERE to_id = ?)
		ORDER BY p.created_at DESC, p.id DESC LIMIT ?`,
		viewerID, viewerID, viewerID, viewerID, streamLimit)
}

// UserStream returns the profile stream of the named user as seen by
// viewerID (0 for anonymous). If the target has blocked the viewer, or
// the username is unknown or reserved, the result is ErrNotFound.
func (b *Builder) UserStream(viewerID int64, username string) (*models.User, []models.Post, error) {
	if username == b.placeholder {
		return nil, nil, ErrNotFound
	}
	var target models.User
	err := b.db.QueryRow(`SELECT id, username, email, created_at FROM users WHERE username = ?`, username).
		Scan(&target.ID, &target.Username, &target.Email, &target.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	} else if err != nil {
		return nil, nil, err
	}

	if viewerID != 0 {
		var blocked bool
		err := b.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM blocks WHERE from_id=? AND to_id=?)`,
			target.ID, viewerID).Scan(&blocked)
		if err != nil {
			return nil, nil, err
		}
		if blocked {
			return nil, nil, ErrNotFound
		}
	}

	stream, err := b.collect(`SELECT p.id, p.user_id, p.content, p.created_at, u.username
		FROM posts p JOIN users u ON u.id = p.user_id
		WHERE p.user_id = ?
		ORDER BY p.created_at DESC, p.id DESC LIMIT ?`, target.ID, streamLimit)
	if err != nil {
		return nil, nil, err
	}
	return &target, stream, nil
}

func (b *Builder) collect(q string, args ...any) ([]models.Post, error) {
	rows, err := b.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stream []models.Post
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.UserID, &p.Content, &p.CreatedAt, &p.Author); err != nil {
			return nil, err
		}
		stream = append(stream, p)
	}
	return stream, rows.Err()
}
