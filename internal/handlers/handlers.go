package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KamilB91/medals/internal/account"
	"github.com/KamilB91/medals/internal/auth"
	"github.com/KamilB91/medals/internal/feed"
	"github.com/KamilB91/medals/internal/posts"
	"github.com/KamilB91/medals/internal/relation"
)

type Handler struct {
	sessions *auth.Manager
	accounts *account.Manager
	graph    *relation.Graph
	posts    *posts.Store
	feeds    *feed.Builder
	tpls     *template.Template
}

func New(sessions *auth.Manager, accounts *account.Manager, graph *relation.Graph, store *posts.Store, feeds *feed.Builder) *Handler {
	tpls := template.Must(template.ParseGlob(filepath.Join("web", "templates", "*.html")))
	return &Handler{
		sessions: sessions,
		accounts: accounts,
		graph:    graph,
		posts:    store,
		feeds:    feeds,
		tpls:     tpls,
	}
}

func (h *Handler) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := h.sessions.CurrentUserID(r); !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	}
}

// -------- Streams

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		h.NotFound(w, r)
		return
	}
	user, logged := h.sessions.CurrentUser(r)
	if !logged {
		global, err := h.feeds.Global()
		if err != nil {
			http.Error(w, "DB error", http.StatusInternalServerError)
			return
		}
		h.tpls.ExecuteTemplate(w, "stream", map[string]any{
			"Title":  "Stream",
			"Logged": false,
			"Stream": global,
			"Msg":    r.URL.Query().Get("msg"),
		})
		return
	}

	own, err := h.feeds.Stream(user.ID)
	if err != nil {
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	h.tpls.ExecuteTemplate(w, "stream", map[string]any{
		"Title":    "Stream",
		"Logged":   true,
		"Username": user.Username,
		"Stream":   own,
		"Msg":      r.URL.Query().Get("msg"),
	})
}

// Stream serves /stream and /stream/{username}.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	username := strings.Trim(strings.TrimPrefix(r.URL.Path, "/stream"), "/")
	user, logged := h.sessions.CurrentUser(r)

	if username == "" || (logged && username == user.Username) {
		// Aggregated stream; degrades to the global stream without a session.
		if !logged {
			global, err := h.feeds.Global()
			if err != nil {
				http.Error(w, "DB error", http.StatusInternalServerError)
				return
			}
			h.tpls.ExecuteTemplate(w, "stream", map[string]any{
				"Title":  "Stream",
				"Logged": false,
				"Stream": global,
			})
			return
		}
		stream, err := h.feeds.Stream(user.ID)
		if err != nil {
			http.Error(w, "DB error", http.StatusInternalServerError)
			return
		}
		h.tpls.ExecuteTemplate(w, "stream", map[string]any{
			"Title":    "Stream",
			"Logged":   true,
			"Username": user.Username,
			"Stream":   stream,
		})
		return
	}

	var viewerID int64
	if logged {
		viewerID = user.ID
	}
	target, stream, err := h.feeds.UserStream(viewerID, username)
	if errors.Is(err, feed.ErrNotFound) {
		h.NotFound(w, r)
		return
	} else if err != nil {
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}

	following := false
	if logged {
		following, _ = h.graph.IsFollowing(user.ID, target.ID)
	}
	h.tpls.ExecuteTemplate(w, "user_stream", map[string]any{
		"Title":     target.Username,
		"Logged":    logged,
		"Target":    target.Username,
		"Stream":    stream,
		"Following": following,
		"Msg":       r.URL.Query().Get("msg"),
	})
}

func (h *Handler) PostByID(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/post/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.NotFound(w, r)
		return
	}
	p, err := h.posts.ByID(id)
	if errors.Is(err, posts.ErrNotFound) {
		h.NotFound(w, r)
		return
	} else if err != nil {
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	_, logged := h.sessions.CurrentUserID(r)
	h.tpls.ExecuteTemplate(w, "post", map[string]any{
		"Title":  "Post",
		"Logged": logged,
		"Post":   p,
	})
}

// -------- Posting

func (h *Handler) NewPost(w http.ResponseWriter, r *http.Request) {
	h.tpls.ExecuteTemplate(w, "new_post", map[string]any{
		"Title":  "New Post",
		"Logged": true,
	})
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	uid, _ := h.sessions.CurrentUserID(r)

	p, err := h.posts.Create(uid, r.FormValue("content"))
	if errors.Is(err, posts.ErrEmptyContent) {
		http.Error(w, "Post content required", http.StatusBadRequest)
		return
	} else if err != nil {
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/post/"+strconv.FormatInt(p.ID, 10), http.StatusSeeOther)
}

// -------- Accounts

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.tpls.ExecuteTemplate(w, "register", map[string]any{"Title": "Register"})
		return
	case http.MethodPost:
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	_, err := h.accounts.Register(
		r.FormValue("username"),
		r.FormValue("email"),
		r.FormValue("password"),
	)
	if errors.Is(err, account.ErrInvalid) {
		http.Error(w, "Username or email already taken, and all fields are required", http.StatusBadRequest)
		return
	} else if err != nil {
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/login?registered=1", http.StatusSeeOther)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.tpls.ExecuteTemplate(w, "login", map[string]any{
			"Title":      "Login",
			"Registered": r.URL.Query().Get("registered") == "1",
		})
		return
	case http.MethodPost:
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	user, err := h.accounts.Authenticate(r.FormValue("email"), r.FormValue("password"))
	if errors.Is(err, account.ErrBadCredentials) {
		// Unknown email and wrong password are reported identically.
		http.Error(w, "Your email or password doesn't match", http.StatusUnauthorized)
		return
	} else if err != nil {
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}

	h.sessions.DestroyAll(user.ID)
	if err := h.sessions.Create(w, user.ID); err != nil {
		http.Error(w, "session error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Destroy(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) UpdateOptions(w http.ResponseWriter, r *http.Request) {
	h.tpls.ExecuteTemplate(w, "update_options", map[string]any{
		"Title":  "Account Settings",
		"Logged": true,
	})
}

func (h *Handler) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.tpls.ExecuteTemplate(w, "update_email", map[string]any{"Title": "Update Email", "Logged": true})
		return
	case http.MethodPost:
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	uid, _ := h.sessions.CurrentUserID(r)
	err := h.accounts.UpdateEmail(uid, r.FormValue("password"), r.FormValue("email"))
	switch {
	case errors.Is(err, account.ErrBadCredentials):
		http.Error(w, "Incorrect password", http.StatusUnauthorized)
	case errors.Is(err, account.ErrInvalid):
		http.Error(w, "Email already taken", http.StatusBadRequest)
	case err != nil:
		http.Error(w, "DB error", http.StatusInternalServerError)
	default:
		http.Redirect(w, r, "/?msg=Email+updated", http.StatusSeeOther)
	}
}

func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.tpls.ExecuteTemplate(w, "update_password", map[string]any{"Title": "Update Password", "Logged": true})
		return
	case http.MethodPost:
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	uid, _ := h.sessions.CurrentUserID(r)
	err := h.accounts.UpdatePassword(uid, r.FormValue("old_password"), r.FormValue("password"))
	switch {
	case errors.Is(err, account.ErrBadCredentials):
		http.Error(w, "Incorrect password", http.StatusUnauthorized)
	case errors.Is(err, account.ErrInvalid):
		http.Error(w, "Password required", http.StatusBadRequest)
	case err != nil:
		http.Error(w, "DB error", http.StatusInternalServerError)
	default:
		http.Redirect(w, r, "/?msg=Password+updated", http.StatusSeeOther)
	}
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	uid, _ := h.sessions.CurrentUserID(r)
	if err := h.accounts.Delete(uid); err != nil {
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	// The transaction already dropped the sessions; this clears the cookie.
	h.sessions.Destroy(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// -------- Relationships

// target resolves the trailing username of an edge route and rejects
// the reserved placeholder account, which is not followable/blockable.
func (h *Handler) target(w http.ResponseWriter, r *http.Request, prefix string) (int64, string, bool) {
	username := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if username == "" || username == account.PlaceholderUsername {
		h.NotFound(w, r)
		return 0, "", false
	}
	u, err := h.accounts.ByUsername(username)
	if errors.Is(err, account.ErrNotFound) {
		h.NotFound(w, r)
		return 0, "", false
	} else if err != nil {
		http.Error(w, "DB error", http.StatusInternalServerError)
		return 0, "", false
	}
	return u.ID, u.Username, true
}

func (h *Handler) Follow(w http.ResponseWriter, r *http.Request) {
	targetID, username, ok := h.target(w, r, "/follow")
	if !ok {
		return
	}
	uid, _ := h.sessions.CurrentUserID(r)
	if err := h.graph.Follow(uid, targetID); err != nil {
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/stream/"+username+"?msg=Now+following+"+username, http.StatusSeeOther)
}

func (h *Handler) Unfollow(w http.ResponseWriter, r *http.Request) {
	targetID, username, ok := h.target(w, r, "/unfollow")
	if !ok {
		return
	}
	uid, _ := h.sessions.CurrentUserID(r)
	if err := h.graph.Unfollow(uid, targetID); err != nil {
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/stream/"+username+"?msg=Unfollowed+"+username, http.StatusSeeOther)
}

func (h *Handler) Block(w http.ResponseWriter, r *http.Request) {
	targetID, username, ok := h.target(w, r, "/block_user")
	if !ok {
		return
	}
	uid, _ := h.sessions.CurrentUserID(r)
	if err := h.graph.Block(uid, targetID); err != nil {
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/?msg=Blocked+"+username, http.StatusSeeOther)
}

func (h *Handler) Unblock(w http.ResponseWriter, r *http.Request) {
	targetID, username, ok := h.target(w, r, "/unblock_user")
	if !ok {
		return
	}
	uid, _ := h.sessions.CurrentUserID(r)
	if err := h.graph.Unblock(uid, targetID); err != nil {
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/?msg=Unblocked+"+username, http.StatusSeeOther)
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
	h.tpls.ExecuteTemplate(w, "notfound", map[string]any{"Title": "Not Found"})
}
