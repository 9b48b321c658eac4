package main

import (
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/KamilB91/medals/internal/account"
	"github.com/KamilB91/medals/internal/auth"
	"github.com/KamilB91/medals/internal/config"
	"github.com/KamilB91/medals/internal/db"
	"github.com/KamilB91/medals/internal/feed"
	"github.com/KamilB91/medals/internal/handlers"
	"github.com/KamilB91/medals/internal/posts"
	"github.com/KamilB91/medals/internal/relation"
)

func main() {
	configPath := pflag.String("config", "config.yaml", "path to the config file")
	addr := pflag.String("addr", "", "listen address (overrides config)")
	dbPath := pflag.String("db", "", "sqlite database path (overrides config)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if p := os.Getenv("PORT"); p != "" {
		cfg.Addr = ":" + p
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		log.Fatal(err)
	}

	dbc, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal(err)
	}
	defer dbc.Close()

	if err := db.Migrate(dbc); err != nil {
		log.Fatal(err)
	}

	accounts := account.NewManager(dbc)
	// Bootstrap failure is logged, not fatal: the original tolerates it
	// and the rest of the app still works minus account deletion.
	placeholder, err := accounts.Bootstrap(cfg.Seed.Username, cfg.Seed.Email, cfg.Seed.Password)
	if err != nil {
		log.Printf("bootstrap: %v", err)
	}
	placeholderName := account.PlaceholderUsername
	if placeholder != nil {
		placeholderName = placeholder.Username
	}

	sessions := auth.NewManager(dbc, cfg.SessionMaxAge())
	graph := relation.NewGraph(dbc)
	store := posts.NewStore(dbc)
	feeds := feed.NewBuilder(dbc, placeholderName)

	h := handlers.New(sessions, accounts, graph, store, feeds)

	// static files
	fs := http.FileServer(http.Dir("./web/static"))
	http.Handle("/static/", http.StripPrefix("/static/", fs))

	// routes
	http.HandleFunc("/", h.Index)
	http.HandleFunc("/register", h.Register)
	http.HandleFunc("/login", h.Login)
	http.HandleFunc("/logout", h.RequireAuth(h.Logout))

	http.HandleFunc("/stream", h.Stream)
	http.HandleFunc("/stream/", h.Stream) // /stream/{username}

	http.HandleFunc("/post/new", h.RequireAuth(h.NewPost))
	http.HandleFunc("/post/create", h.RequireAuth(h.CreatePost))
	http.HandleFunc("/post/", h.PostByID) // /post/{id}

	http.HandleFunc("/follow/", h.RequireAuth(h.Follow))
	http.HandleFunc("/unfollow/", h.RequireAuth(h.Unfollow))
	http.HandleFunc("/block_user/", h.RequireAuth(h.Block))
	http.HandleFunc("/unblock_user/", h.RequireAuth(h.Unblock))

	http.HandleFunc("/update_options", h.RequireAuth(h.UpdateOptions))
	http.HandleFunc("/update_email", h.RequireAuth(h.UpdateEmail))
	http.HandleFunc("/update_password", h.RequireAuth(h.UpdatePassword))
	http.HandleFunc("/delete", h.RequireAuth(h.DeleteAccount))

	log.Printf("listening on %s", cfg.Addr)
	err = http.ListenAndServe(cfg.Addr, handlers.WithRecover(http.DefaultServeMux))
	if err != nil {
		log.Fatal(err)
	}
}
