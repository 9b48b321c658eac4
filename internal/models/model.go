package models

import "time"

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Admin        bool
	CreatedAt    time.Time
}

type Post struct {
	ID        int64
	UserID    int64
	Content   string
	CreatedAt time.Time
	Author    string
}
