package repository

import "database/sql"

type Repo struct {
	db *sql.DB
}

type Settings struct {
	GuildID               string
	DefaultVolume         int
	SecondsWaitAfterEmpty int
	LeaveIfNoListeners    bool
	QueueLimit            int
}
