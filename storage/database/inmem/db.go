package inmemdb

import (
	"sync"

	"github.com/trezcool/classgate/core/user"
)

type (
	// DB is an in-memory database used in DEV and in tests.
	DB struct {
		user *userTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]user.User
	}
)

func Open() *DB {
	return &DB{
		user: &userTable{table: make(map[string]user.User)},
	}
}

// Reset drops every row.
func (db *DB) Reset() {
	db.user.Lock()
	defer db.user.Unlock()
	db.user.table = make(map[string]user.User)
}
