package config

type Config interface {
	EnvConfig
	CorsConfig
	SessionConfig
	StoreConfig
	BackendConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetLoginURL() string
	GetPrompter() PrompterType
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Session
	Store
	Backend
}

func New() Config {
	return mainConfig{}
}
