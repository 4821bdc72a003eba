package models

import "time"

type Task struct {
	ID        string
	Owner     string
	Text      string
	IsPublic  bool
	CreatedAt time.Time
}
