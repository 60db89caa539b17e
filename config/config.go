package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Gemini GeminiConfig `yaml:"gemini"`
	Google GoogleConfig `yaml:"google"`
	Drive  DriveConfig  `yaml:"drive"`
	Sheets SheetsConfig `yaml:"sheets"`
	Auth   AuthConfig   `yaml:"auth"`
	Store  StoreConfig  `yaml:"store"`
	Users  []User       `yaml:"users"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// GoogleConfig holds the service account credentials shared by the Drive
// and Sheets clients.
type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
}

type DriveConfig struct {
	// RootFolderID is the Drive folder that holds one subfolder per party.
	RootFolderID string `yaml:"root_folder_id"`
}

type SheetsConfig struct {
	// SpreadsheetID is the ledger document with one worksheet per party.
	SpreadsheetID string `yaml:"spreadsheet_id"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type StoreConfig struct {
	MaxBills int `yaml:"max_bills"`
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

var GlobalConfig *Config

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Secrets and deployment-specific IDs may come from the environment
	// instead of the file
	applyEnvOverrides(&cfg)

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-1.5-flash"
	}
	if cfg.Auth.TokenExpireHours == 0 {
		cfg.Auth.TokenExpireHours = 24
	}
	if cfg.Store.MaxBills == 0 {
		cfg.Store.MaxBills = 200
	}

	GlobalConfig = &cfg
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.Gemini.Model = v
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" {
		cfg.Google.CredentialsFile = v
	}
	if v := os.Getenv("GOOGLE_DRIVE_FOLDER_ID"); v != "" {
		cfg.Drive.RootFolderID = v
	}
	if v := os.Getenv("GOOGLE_SHEET_ID"); v != "" {
		cfg.Sheets.SpreadsheetID = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
