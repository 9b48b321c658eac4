package auth

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KamilB91/medals/internal/db"
)

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

func requestWithCookies(w *httptest.ResponseRecorder) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func TestSessionRoundTrip(t *testing.T) {
	dbc := testDB(t)
	m := NewManager(dbc, time.Hour)
	alice := addUser(t, dbc, "alice")

	w := httptest.NewRecorder()
	if err := m.Create(w, alice); err != nil {
		t.Fatal(err)
	}

	r := requestWithCookies(w)
	uid, ok := m.CurrentUserID(r)
	if !ok || uid != alice {
		t.Fatalf("CurrentUserID = %d, %v", uid, ok)
	}

	u, ok := m.CurrentUser(r)
	if !ok || u.Username != "alice" {
		t.Fatalf("CurrentUser = %+v, %v", u, ok)
	}
}

func TestAnonymousRequest(t *testing.T) {
	dbc := testDB(t)
	m := NewManager(dbc, time.Hour)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := m.CurrentUserID(r); ok {
		t.Fatal("request without cookie resolved to a user")
	}
	if _, ok := m.CurrentUser(r); ok {
		t.Fatal("request without cookie resolved to a user")
	}
}

func TestDestroy(t *testing.T) {
	dbc := testDB(t)
	m := NewManager(dbc, time.Hour)
	alice := addUser(t, dbc, "alice")

	w := httptest.NewRecorder()
	if err := m.Create(w, alice); err != nil {
		t.Fatal(err)
	}
	r := requestWithCookies(w)

	m.Destroy(httptest.NewRecorder(), r)
	if _, ok := m.CurrentUserID(r); ok {
		t.Fatal("session survived Destroy")
	}
}

func TestDestroyAll(t *testing.T) {
	dbc := testDB(t)
	m := NewManager(dbc, time.Hour)
	alice := addUser(t, dbc, "alice")

	w1 := httptest.NewRecorder()
	w2 := httptest.NewRecorder()
	m.Create(w1, alice)
	m.Create(w2, alice)

	m.DestroyAll(alice)

	if _, ok := m.CurrentUserID(requestWithCookies(w1)); ok {
		t.Fatal("first session survived DestroyAll")
	}
	if _, ok := m.CurrentUserID(requestWithCookies(w2)); ok {
		t.Fatal("second session survived DestroyAll")
	}
}

func TestExpiredSession(t *testing.T) {
	dbc := testDB(t)
	m := NewManager(dbc, -time.Minute)
	alice := addUser(t, dbc, "alice")

	w := httptest.NewRecorder()
	if err := m.Create(w, alice); err != nil {
		t.Fatal(err)
	}
	// Present the stored session id directly; a real browser would have
	// dropped the already-expired cookie.
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	var id string
	if err := dbc.QueryRow(`SELECT id FROM sessions WHERE user_id=?`, alice).Scan(&id); err != nil {
		t.Fatal(err)
	}
	r.AddCookie(&http.Cookie{Name: sessionCookie, Value: id})

	if _, ok := m.CurrentUserID(r); ok {
		t.Fatal("expired session resolved to a user")
	}
}
