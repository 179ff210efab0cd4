package refreshrepofake

import (
	"errors"
	"sync"
	"time"

	"github.com/jrsteele09/lunar-session/token/refresh"
)

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)

var errNotFound = errors.New("not found")

type FakeRefreshTokenRepo struct {
	tokens map[string]refresh.StoredRefreshToken
	lock   sync.RWMutex
}

func NewFakeRefreshTokenRepo() refresh.Repo {
	return &FakeRefreshTokenRepo{
		tokens: make(map[string]refresh.StoredRefreshToken),
	}
}

// Upsert stores a copy, so later changes to refreshToken are not seen.
func (tr *FakeRefreshTokenRepo) Upsert(refreshToken *refresh.StoredRefreshToken) error {
	if refreshToken == nil || refreshToken.Token == "" {
		return errors.New("refresh token is empty")
	}
	tr.lock.Lock()
	defer tr.lock.Unlock()

	tr.tokens[refreshToken.Token] = *refreshToken
	return nil
}

func (tr *FakeRefreshTokenRepo) Delete(token string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	if _, ok := tr.tokens[token]; !ok {
		return errNotFound
	}
	delete(tr.tokens, token)
	return nil
}

func (tr *FakeRefreshTokenRepo) Get(token string) (*refresh.StoredRefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	rt, ok := tr.tokens[token]
	if !ok {
		return nil, errNotFound
	}
	return &rt, nil
}

func (tr *FakeRefreshTokenRepo) Take(token string) (*refresh.StoredRefreshToken, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	rt, ok := tr.tokens[token]
	if !ok {
		return nil, errNotFound
	}
	delete(tr.tokens, token)
	return &rt, nil
}

func (tr *FakeRefreshTokenRepo) DeleteExpired(now time.Time) (int, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	removed := 0
	for token, rt := range tr.tokens {
		if !rt.ExpiresAt.After(now) {
			delete(tr.tokens, token)
			removed++
		}
	}
	return removed, nil
}
