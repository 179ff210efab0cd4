package fakeuserrepo

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/lunar-session/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users       map[string]*users.User
	identifiers map[string]string // lower-cased email or username to user id
	lock        sync.RWMutex
}

func NewFakeUserRepo() users.UserRepo {
	return &FakeUserRepo{
		users:       make(map[string]*users.User),
		identifiers: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if existing, ok := ur.users[user.ID]; ok {
		delete(ur.identifiers, strings.ToLower(existing.Email))
		delete(ur.identifiers, strings.ToLower(existing.Username))
	}
	ur.users[user.ID] = user
	if user.Email != "" {
		ur.identifiers[strings.ToLower(user.Email)] = user.ID
	}
	if user.Username != "" {
		ur.identifiers[strings.ToLower(user.Username)] = user.ID
	}
	return nil
}

func (ur *FakeUserRepo) Delete(id string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return errors.New("not found")
	}
	delete(ur.identifiers, strings.ToLower(user.Email))
	delete(ur.identifiers, strings.ToLower(user.Username))
	delete(ur.users, id)
	return nil
}

func (ur *FakeUserRepo) GetByIdentifier(identifier string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.identifiers[strings.ToLower(identifier)]
	if !ok {
		return nil, errors.New("not found")
	}
	return ur.users[id], nil
}

func (ur *FakeUserRepo) GetByID(id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	if _, ok := ur.users[id]; !ok {
		return nil, errors.New("not found")
	}
	return ur.users[id], nil
}

func (ur *FakeUserRepo) List(offset, limit int) ([]*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	userList := make([]*users.User, 0, len(ur.users))
	for _, v := range ur.users {
		userList = append(userList, v)
	}

	sort.Slice(userList, func(i, j int) bool {
		return userList[i].ID < userList[j].ID
	})

	if offset >= len(userList) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(userList) {
		end = len(userList)
	}
	return userList[offset:end], nil
}
