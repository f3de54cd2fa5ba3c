package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	portEnvVar     = "PORT"
	appNameVar     = "APP_NAME"
	folderEnvVar   = "FOLDER"
	loginURLEnvVar = "LOGIN_URL"
	prompterEnvVar = "PROMPTER"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

// GetPort returns the listen address of the local control API.
func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8090")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Session Agent")
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, "./data")
}

// GetLoginURL is where a forced logout sends the user.
func (EnvVars) GetLoginURL() string {
	return GetEnv(loginURLEnvVar, "/login.html")
}

// PrompterType selects where the expiry prompt is shown.
type PrompterType string

const (
	PrompterAPI      PrompterType = "api"
	PrompterTerminal PrompterType = "terminal"
)

func (EnvVars) GetPrompter() PrompterType {
	return PrompterType(strings.ToLower(GetEnv(prompterEnvVar, string(PrompterAPI))))
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
