package main

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"arenasv/arenasv/wire"
)

// MaxRegisteredUsers is the capacity of the registered user table.
const MaxRegisteredUsers = 1024

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUserExists    = errors.New("user already registered")
	ErrUserStoreFull = errors.New("user store is full")
	ErrInvalidUser   = errors.New("name or password contains a line break")
)

type RegisteredUser struct {
	Name     string `db:"name" json:"name,omitempty"`
	Password string `db:"password" json:"-"`
}

// checkCredential rejects values that would break the line based user file.
func checkCredential(name, password string) error {
	if strings.ContainsAny(name, "\r\n") || strings.ContainsAny(password, "\r\n") {
		return ErrInvalidUser
	}
	return nil
}

// DB is an interface of the registered user store.
type DB interface {
	// Init prepares the backing storage.
	Init() error

	// RegisterUser adds a new user. It returns ErrUserExists for a known
	// name, ErrUserStoreFull when the table is at capacity and
	// ErrInvalidUser for a name or password with a line break.
	RegisterUser(name, password string) error

	// GetUser returns ErrUserNotFound for an unknown name.
	GetUser(name string) (*RegisteredUser, error)

	// CountUsers returns the number of registered users.
	CountUsers() (int, error)
}

var defaultdb DB

func getDB() DB {
	return defaultdb
}

// authenticate answers a login attempt with its response code.
func authenticate(db DB, name, password string) wire.Code {
	u, err := db.GetUser(name)
	if errors.Cause(err) == ErrUserNotFound {
		return wire.CodeLoginFailUnregistered
	}
	if err != nil {
		logger.Error("failed to get user", zap.String("name", name), zap.Error(err))
		return wire.CodeLoginFailUnregistered
	}
	if u.Password != password {
		return wire.CodeLoginFailErrorPassword
	}
	return wire.CodeLoginSuccess
}
