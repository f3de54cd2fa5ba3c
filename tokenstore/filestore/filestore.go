package filestore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/go-session-watcher/tokenstore"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

var _ tokenstore.Store = (*FileStore)(nil)

const (
	saltLength  = 16
	nonceLength = 24
	keyLength   = 32
)

// envelope is the on-disk format. Values is set for plain files, Salt, Nonce
// and Sealed for encrypted ones.
type envelope struct {
	Values map[string]string `json:"values,omitempty"`
	Salt   []byte            `json:"salt,omitempty"`
	Nonce  []byte            `json:"nonce,omitempty"`
	Sealed []byte            `json:"sealed,omitempty"`
}

// FileStore persists values as a JSON file. The file is re-read on every call
// so writes made by other processes are always visible.
type FileStore struct {
	path string
	key  *[keyLength]byte
	salt []byte
	lock sync.Mutex
}

type Option func(*FileStore) error

// WithPassphrase encrypts the file with a key derived from passphrase.
func WithPassphrase(passphrase string) Option {
	return func(s *FileStore) error {
		if passphrase == "" {
			return nil
		}
		salt, err := s.readSalt()
		if err != nil {
			return err
		}
		if salt == nil {
			salt = make([]byte, saltLength)
			if _, err := io.ReadFull(rand.Reader, salt); err != nil {
				return fmt.Errorf("failed to generate salt: %w", err)
			}
		}
		s.salt = salt
		s.key = deriveKey(passphrase, salt)
		return nil
	}
}

// Open returns a store backed by path, creating the parent folder if needed.
func Open(path string, opts ...Option) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store folder: %w", err)
	}
	s := &FileStore{path: path}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	// Fail early on a wrong passphrase.
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(key string) (string, bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	values, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (s *FileStore) Set(key, value string) error {
	return s.SetMany(map[string]string{key: value})
}

func (s *FileStore) SetMany(values map[string]string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	current, err := s.load()
	if err != nil {
		return err
	}
	maps.Copy(current, values)
	return s.save(current)
}

func (s *FileStore) Delete(key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	current, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := current[key]; !ok {
		return nil
	}
	delete(current, key)
	return s.save(current)
}

func (s *FileStore) Clear() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.save(map[string]string{})
}

func (s *FileStore) readEnvelope() (*envelope, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode store: %w", err)
	}
	return &env, nil
}

func (s *FileStore) readSalt() ([]byte, error) {
	env, err := s.readEnvelope()
	if err != nil || env == nil {
		return nil, err
	}
	return env.Salt, nil
}

func (s *FileStore) load() (map[string]string, error) {
	env, err := s.readEnvelope()
	if err != nil {
		return nil, err
	}
	values := make(map[string]string)
	if env == nil {
		return values, nil
	}

	if env.Sealed == nil {
		if s.key != nil && len(env.Values) > 0 {
			return nil, errors.New("store is not encrypted but a passphrase was given")
		}
		maps.Copy(values, env.Values)
		return values, nil
	}

	if s.key == nil {
		return nil, errors.New("store is encrypted and no passphrase was given")
	}
	if len(env.Nonce) != nonceLength {
		return nil, errors.New("store has an invalid nonce")
	}
	var nonce [nonceLength]byte
	copy(nonce[:], env.Nonce)
	plain, ok := secretbox.Open(nil, env.Sealed, &nonce, s.key)
	if !ok {
		return nil, errors.New("failed to decrypt store: wrong passphrase")
	}
	if err := json.Unmarshal(plain, &values); err != nil {
		return nil, fmt.Errorf("failed to decode store values: %w", err)
	}
	return values, nil
}

func (s *FileStore) save(values map[string]string) error {
	var env envelope
	if s.key == nil {
		env.Values = values
	} else {
		plain, err := json.Marshal(values)
		if err != nil {
			return fmt.Errorf("failed to encode store values: %w", err)
		}
		var nonce [nonceLength]byte
		if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
			return fmt.Errorf("failed to generate nonce: %w", err)
		}
		env.Salt = s.salt
		env.Nonce = nonce[:]
		env.Sealed = secretbox.Seal(nil, plain, &nonce, s.key)
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("failed to chmod store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace store: %w", err)
	}
	return nil
}

func deriveKey(passphrase string, salt []byte) *[keyLength]byte {
	var key [keyLength]byte
	copy(key[:], argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, keyLength))
	return &key
}
