package main

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// FileDB keeps registered users in a text file of alternating name and
// password lines. The whole table is held in memory and every new
// registration is appended to the file.
type FileDB struct {
	path string

	mtx   sync.Mutex
	users []RegisteredUser
	index map[string]int
}

func NewFileDB(path string) *FileDB {
	return &FileDB{
		path:  path,
		index: map[string]int{},
	}
}

// Init creates the file if needed and loads the users in it.
// Duplicated names keep their first entry.
func (db *FileDB) Init() error {
	db.mtx.Lock()
	defer db.mtx.Unlock()

	f, err := os.OpenFile(db.path, os.O_RDONLY|os.O_CREATE, 0600)
	if err != nil {
		return errors.Wrap(err, "open user file failed")
	}
	defer f.Close()

	db.users = db.users[:0]
	db.index = map[string]int{}

	sc := bufio.NewScanner(f)
	for {
		if !sc.Scan() {
			break
		}
		name := sc.Text()
		if !sc.Scan() {
			break
		}
		password := sc.Text()
		if name == "" {
			continue
		}
		if _, ok := db.index[name]; ok {
			continue
		}
		if MaxRegisteredUsers <= len(db.users) {
			break
		}
		db.index[name] = len(db.users)
		db.users = append(db.users, RegisteredUser{Name: name, Password: password})
	}
	if err := sc.Err(); err != nil {
		return errors.Wrap(err, "read user file failed")
	}
	return nil
}

func (db *FileDB) RegisterUser(name, password string) error {
	if err := checkCredential(name, password); err != nil {
		return err
	}

	db.mtx.Lock()
	defer db.mtx.Unlock()

	if _, ok := db.index[name]; ok {
		return ErrUserExists
	}
	if MaxRegisteredUsers <= len(db.users) {
		return ErrUserStoreFull
	}

	f, err := os.OpenFile(db.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
	if err != nil {
		return errors.Wrap(err, "open user file failed")
	}
	_, err = fmt.Fprintf(f, "%s\n%s\n", name, password)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrap(err, "append user failed")
	}

	db.index[name] = len(db.users)
	db.users = append(db.users, RegisteredUser{Name: name, Password: password})
	return nil
}

func (db *FileDB) GetUser(name string) (*RegisteredUser, error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()

	i, ok := db.index[name]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := db.users[i]
	return &u, nil
}

func (db *FileDB) CountUsers() (int, error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	return len(db.users), nil
}
