package models

import "time"

type Comment struct {
	ID        string
	TaskID    string
	Author    Identity
	Text      string
	CreatedAt time.Time
}
