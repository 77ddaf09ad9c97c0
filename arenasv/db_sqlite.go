package main

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS registered_user (
    name     text primary key,
    password text not null,
    created  timestamp
);
`

type SQLiteDB struct {
	*sqlx.DB
}

func (db SQLiteDB) Init() error {
	_, err := db.Exec(schema)
	return errors.Wrap(err, "create schema failed")
}

func (db SQLiteDB) RegisterUser(name, password string) error {
	if err := checkCredential(name, password); err != nil {
		return err
	}

	tx, err := db.Beginx()
	if err != nil {
		return errors.Wrap(err, "Begin failed")
	}

	var n int
	err = tx.Get(&n, `SELECT COUNT(*) FROM registered_user WHERE name = ?`, name)
	if err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "lookup failed")
	}
	if 0 < n {
		_ = tx.Rollback()
		return ErrUserExists
	}

	err = tx.Get(&n, `SELECT COUNT(*) FROM registered_user`)
	if err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "count failed")
	}
	if MaxRegisteredUsers <= n {
		_ = tx.Rollback()
		return ErrUserStoreFull
	}

	_, err = tx.Exec(`INSERT INTO registered_user (name, password, created) VALUES (?, ?, ?)`,
		name, password, time.Now())
	if err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "insert failed")
	}
	return errors.Wrap(tx.Commit(), "Commit failed")
}

func (db SQLiteDB) GetUser(name string) (*RegisteredUser, error) {
	u := &RegisteredUser{}
	err := db.Get(u, `SELECT name, password FROM registered_user WHERE name = ?`, name)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select failed")
	}
	return u, nil
}

func (db SQLiteDB) CountUsers() (int, error) {
	var n int
	err := db.Get(&n, `SELECT COUNT(*) FROM registered_user`)
	return n, errors.Wrap(err, "count failed")
}
