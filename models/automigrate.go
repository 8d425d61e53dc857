package models

// AllTables returns a slice of all tables in the database.
func AllTables() []interface{} {
	return []interface{}{
		&User{},
		&Session{},
		&Message{},
		&Post{}, &PostLike{}, &PostComment{},
		&Follow{},
		&Story{},
		&PendingAction{},
	}
}
