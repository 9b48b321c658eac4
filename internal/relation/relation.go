// Package relation stores the directed follow and block edges between
// users. Edges are persisted immediately; creating an edge that already
// exists and removing one that does not are both no-ops, never errors.
package relation

import "database/sql"

type Graph struct {
	db *sql.DB
}

func NewGraph(db *sql.DB) *Graph {
	return &Graph{db: db}
}

// Follow creates the edge from→to. A duplicate insert hits the
// composite primary key and is ignored.
func (g *Graph) Follow(from, to int64) error {
	_, err := g.db.Exec(`INSERT OR IGNORE INTO follows(from_id,to_id) VALUES(?,?)`, from, to)
	return err
}

func (g *Graph) Unfollow(from, to int64) error {
	_, err := g.db.Exec(`DELETE FROM follows WHERE from_id=? AND to_id=?`, from, to)
	return err
}

func (g *Graph) Block(from, to int64) error {
	_, err := g.db.Exec(`INSERT OR IGNORE INTO blocks(from_id,to_id) VALUES(?,?)`, from, to)
	return err
}

func (g *Graph) Unblock(from, to int64) error {
	_, err := g.db.Exec(`DELETE FROM blocks WHERE from_id=? AND to_id=?`, from, to)
	return err
}

// IsBlocked reports whether by has blocked target.
func (g *Graph) IsBlocked(by, target int64) (bool, error) {
	var blocked bool
	err := g.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM blocks WHERE from_id=? AND to_id=?)`,
		by, target).Scan(&blocked)
	return blocked, err
}

func (g *Graph) IsFollowing(from, to int64) (bool, error) {
	var following bool
	err := g.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM follows WHERE from_id=? AND to_id=?)`,
		from, to).Scan(&following)
	return following, err
}

// Followers returns the usernames of users following userID.
func (g *Graph) Followers(userID int64) ([]string, error) {
	return g.usernames(`SELECT u.username FROM follows f
		JOIN users u ON u.id = f.from_id
		WHERE f.to_id = ? ORDER BY u.username`, userID)
}

// Following returns the usernames of users userID follows.
func (g *Graph) Following(userID int64) ([]string, error) {
	return g.usernames(`SELECT u.username FROM follows f
		JOIN users u ON u.id = f.to_id
		WHERE f.from_id = ? ORDER BY u.username`, userID)
}

func (g *Graph) usernames(q string, userID int64) ([]string, error) {
	rows, err := g.db.Query(q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeleteAllFor removes every follow and block edge touching userID in
// either direction. It runs inside the account-deletion transaction.
func DeleteAllFor(tx *sql.Tx, userID int64) error {
	if _, err := tx.Exec(`DELETE FROM follows WHERE from_id=? OR to_id=?`, userID, userID); err != nil {
		return err
	}
	_, err := tx.Exec(`DELETE FROM blocks WHERE from_id=? OR to_id=?`, userID, userID)
	return err
}
