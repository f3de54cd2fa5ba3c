package config

import "strconv"

// StoreType selects the Token Store implementation.
type StoreType string

const (
	StoreMemory StoreType = "memory"
	StoreFile   StoreType = "file"
	StoreRedis  StoreType = "redis"
	StoreSQLite StoreType = "sqlite"
)

type StoreConfig interface {
	GetStoreType() StoreType
	GetStoreOrigin() string
	GetStorePassphrase() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetStoreType() StoreType {
	return StoreType(GetEnv("STORE", string(StoreFile)))
}

// GetStoreOrigin scopes the stored keys, the way browser storage is scoped per origin.
func (Store) GetStoreOrigin() string {
	return GetEnv("STORE_ORIGIN", "http://localhost:3000")
}

// GetStorePassphrase enables encryption of the file store when set.
func (Store) GetStorePassphrase() string {
	return GetEnv("STORE_PASSPHRASE", "")
}

func (Store) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Store) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Store) GetRedisDB() int {
	db, err := strconv.Atoi(GetEnv("REDIS_DB", "0"))
	if err != nil {
		return 0
	}
	return db
}
