package file

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Argon2id parameters for deriving the file key.
const (
	kdfTime    = 2
	kdfMemory  = 19 * 1024 // KiB
	kdfThreads = 1
	saltLength = 16
)

// ErrDecrypt is returned when the file cannot be opened with the configured passphrase.
var ErrDecrypt = errors.New("cannot decrypt session file")

// envelope is the on-disk format of an encrypted record.
type envelope struct {
	Version int    `json:"v"`
	Salt    []byte `json:"salt"`
	Nonce   []byte `json:"nonce"`
	Data    []byte `json:"data"`
}

// sealer encrypts records with XChaCha20-Poly1305. The derived key is cached
// per salt since Argon2id is deliberately slow.
type sealer struct {
	passphrase []byte

	mu   sync.Mutex
	salt []byte
	key  []byte
}

func newSealer(passphrase string) *sealer {
	return &sealer{passphrase: []byte(passphrase)}
}

func (s *sealer) keyFor(salt []byte) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key != nil && string(s.salt) == string(salt) {
		return s.key
	}
	s.salt = append([]byte(nil), salt...)
	s.key = argon2.IDKey(s.passphrase, salt, kdfTime, kdfMemory, kdfThreads, chacha20poly1305.KeySize)
	return s.key
}

func (s *sealer) currentSalt() ([]byte, error) {
	s.mu.Lock()
	salt := s.salt
	s.mu.Unlock()
	if salt != nil {
		return salt, nil
	}
	salt = make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

func (s *sealer) seal(plain []byte) ([]byte, error) {
	salt, err := s.currentSalt()
	if err != nil {
		return nil, fmt.Errorf("salt: %w", err)
	}
	aead, err := chacha20poly1305.NewX(s.keyFor(salt))
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return json.Marshal(envelope{
		Version: 1,
		Salt:    salt,
		Nonce:   nonce,
		Data:    aead.Seal(nil, nonce, plain, nil),
	})
}

func (s *sealer) open(sealed []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(sealed, &env); err != nil || env.Version != 1 {
		return nil, fmt.Errorf("%w: not an encrypted session file", ErrDecrypt)
	}
	aead, err := chacha20poly1305.NewX(s.keyFor(env.Salt))
	if err != nil {
		return nil, err
	}
	if len(env.Nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce", ErrDecrypt)
	}
	plain, err := aead.Open(nil, env.Nonce, env.Data, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}
