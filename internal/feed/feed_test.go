package feed

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/KamilB91/medals/internal/db"
	"github.com/KamilB91/medals/internal/relation"
)

const placeholder = "account_deleted"

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dbc, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { dbc.Close() })
	if err := db.Migrate(dbc); err != nil {
		t.Fatal(err)
	}
	return dbc
}

func addUser(t *testing.T, dbc *sql.DB, username string) int64 {
	t.Helper()
	res, err := dbc.Exec(`INSERT INTO users(username,email,password_hash,created_at) VALUES(?,?,?,?)`,
		username, username+"@example.com", "x", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	id, _ := res.LastInsertId()
	return id
}

func addPost(t *testing.T, dbc *sql.DB, userID int64, content string) {
	t.Helper()
	if _, err := dbc.Exec(`INSERT INTO posts(user_id,content,created_at) VALUES(?,?,?)`,
		userID, content, time.Now()); err != nil {
		t.Fatal(err)
	}
}

func streamContents(t *testing.T, b *Builder, viewerID int64) []string {
	t.Helper()
	stream, err := b.Stream(viewerID)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]string, 0, len(stream))
	for _, p := range stream {
		out = append(out, p.Content)
	}
	return out
}

func TestGlobalStreamNewestFirst(t *testing.T) {
	dbc := testDB(t)
	b := NewBuilder(dbc, placeholder)
	alice := addUser(t, dbc, "alice")
	bob := addUser(t, dbc, "bob")

	addPost(t, dbc, alice, "one")
	addPost(t, dbc, bob, "two")
	addPost(t, dbc, alice, "three")

	stream, err := b.Global()
	if err != nil {
		t.Fatal(err)
	}
	if len(stream) != 3 {
		t.Fatalf("got %d posts, want 3", len(stream))
	}
	for i, want := range []string{"three", "two", "one"} {
		if stream[i].Content != want {
			t.Fatalf("stream[%d] = %q, want %q", i, stream[i].Content, want)
		}
	}
}

func TestStreamFollowsAndOwnPosts(t *testing.T) {
	dbc := testDB(t)
	b := NewBuilder(dbc, placeholder)
	g := relation.NewGraph(dbc)
	alice := addUser(t, dbc, "alice")
	bob := addUser(t, dbc, "bob")
	carol := addUser(t, dbc, "carol")

	addPost(t, dbc, alice, "mine")
	addPost(t, dbc, bob, "hello")
	addPost(t, dbc, carol, "unrelated")

	if err := g.Follow(alice, bob); err != nil {
		t.Fatal(err)
	}

	got := streamContents(t, b, alice)
	if len(got) != 2 || got[0] != "hello" || got[1] != "mine" {
		t.Fatalf("stream = %v, want [hello mine]", got)
	}
}

func TestBlockWinsOverFollow(t *testing.T) {
	dbc := testDB(t)
	b := NewBuilder(dbc, placeholder)
	g := relation.NewGraph(dbc)
	alice := addUser(t, dbc, "alice")
	bob := addUser(t, dbc, "bob")

	g.Follow(alice, bob)
	addPost(t, dbc, bob, "hello")

	if got := streamContents(t, b, alice); len(got) != 1 || got[0] != "hello" {
		t.Fatalf("before block: stream = %v, want [hello]", got)
	}

	// Bob blocks alice: bob's posts disappear from alice's stream even
	// though the follow edge is still there.
	if err := g.Block(bob, alice); err != nil {
		t.Fatal(err)
	}
	if got := streamContents(t, b, alice); len(got) != 0 {
		t.Fatalf("after being blocked: stream = %v, want empty", got)
	}

	// And the other direction: if alice blocks bob, bob's posts are
	// gone from her stream too.
	g.Unblock(bob, alice)
	if err := g.Block(alice, bob); err != nil {
		t.Fatal(err)
	}
	if got := streamContents(t, b, alice); len(got) != 0 {
		t.Fatalf("after blocking: stream = %v, want empty", got)
	}
}

func TestUserStreamHiddenFromBlockedViewer(t *testing.T) {
	dbc := testDB(t)
	b := NewBuilder(dbc, placeholder)
	g := relation.NewGraph(dbc)
	alice := addUser(t, dbc, "alice")
	bob := addUser(t, dbc, "bob")
	addPost(t, dbc, bob, "hello")
	addPost(t, dbc, alice, "hi bob")

	if err := g.Block(bob, alice); err != nil {
		t.Fatal(err)
	}

	// Alice is blocked: bob's profile looks like it doesn't exist.
	if _, _, err := b.UserStream(alice, "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	// Bob, the blocker, can still open alice's profile.
	_, stream, err := b.UserStream(bob, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(stream) != 1 || stream[0].Content != "hi bob" {
		t.Fatalf("stream = %v", stream)
	}

	// Anonymous viewers are never blocked.
	_, stream, err = b.UserStream(0, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(stream) != 1 {
		t.Fatalf("anonymous got %d posts, want 1", len(stream))
	}
}

func TestUserStreamNotFound(t *testing.T) {
	dbc := testDB(t)
	b := NewBuilder(dbc, placeholder)
	alice := addUser(t, dbc, "alice")

	if _, _, err := b.UserStream(alice, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown username: err = %v, want ErrNotFound", err)
	}
	// The reserved deleted-account user has no viewable profile.
	addUser(t, dbc, placeholder)
	if _, _, err := b.UserStream(alice, placeholder); !errors.Is(err, ErrNotFound) {
		t.Fatalf("placeholder: err = %v, want ErrNotFound", err)
	}
}

func TestStreamCap(t *testing.T) {
	dbc := testDB(t)
	b := NewBuilder(dbc, placeholder)
	alice := addUser(t, dbc, "alice")

	for i := 0; i < streamLimit+10; i++ {
		addPost(t, dbc, alice, fmt.Sprintf("post %d", i))
	}

	if got := streamContents(t, b, alice); len(got) != streamLimit {
		t.Fatalf("aggregated stream has %d posts, want %d", len(got), streamLimit)
	}

	_, stream, err := b.UserStream(0, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(stream) != streamLimit {
		t.Fatalf("profile stream has %d posts, want %d", len(stream), streamLimit)
	}

	// The global stream is deliberately uncapped.
	global, err := b.Global()
	if err != nil {
		t.Fatal(err)
	}
	if len(global) != streamLimit+10 {
		t.Fatalf("global stream has %d posts, want %d", len(global), streamLimit+10)
	}
}
