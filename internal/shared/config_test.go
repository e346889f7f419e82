package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if spotify := config.Credentials.Spotify; spotify.ClientID != "" || spotify.ClientSecret != "" {
			t.Errorf("expected empty spotify credentials, got %q/%q", spotify.ClientID, spotify.ClientSecret)
		}

		if config.Pipeline.Playlist != "frensrecomms.asia" {
			t.Errorf("expected playlist frensrecomms.asia, got %s", config.Pipeline.Playlist)
		}

		if config.Pipeline.Market != "FR" {
			t.Errorf("expected market FR, got %s", config.Pipeline.Market)
		}

		if config.Pipeline.SearchLimit != 5 {
			t.Errorf("expected search limit 5, got %d", config.Pipeline.SearchLimit)
		}

		if config.Pipeline.CallTimeout.Duration != 60*time.Second {
			t.Errorf("expected call timeout 60s, got %v", config.Pipeline.CallTimeout.Duration)
		}

		if config.Pipeline.NotFoundDir != "not found" {
			t.Errorf("expected not found dir 'not found', got %q", config.Pipeline.NotFoundDir)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Credentials.OpenAI.Model != "gpt-4o" {
			t.Errorf("expected model gpt-4o, got %s", config.Credentials.OpenAI.Model)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("expected default config to validate, got %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Pipeline.Inbox != DefaultConfig().Pipeline.Inbox {
			t.Errorf("created config inbox doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[pipeline]
inbox = "shots"
playlist = "From Friends"
workers = 3
call_timeout = "5s"

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"

[credentials.openai]
api_key = "sk-test"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Pipeline.Inbox != "shots" {
			t.Errorf("expected inbox shots, got %s", config.Pipeline.Inbox)
		}
		if config.Pipeline.Workers != 3 {
			t.Errorf("expected 3 workers, got %d", config.Pipeline.Workers)
		}
		if config.Pipeline.CallTimeout.Duration != 5*time.Second {
			t.Errorf("expected 5s timeout, got %v", config.Pipeline.CallTimeout.Duration)
		}
		if config.Pipeline.Market != "FR" {
			t.Errorf("expected market to fall back to FR, got %s", config.Pipeline.Market)
		}
		if config.Credentials.OpenAI.APIKey != "sk-test" {
			t.Errorf("expected api key sk-test, got %s", config.Credentials.OpenAI.APIKey)
		}
	})

	t.Run("LoadConfig With Bad Duration", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[pipeline]\ncall_timeout = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected error for invalid duration")
		}
	})

	t.Run("SaveConfig Round Trips Tokens", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		expiry := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

		err := config.Credentials.Spotify.Update(&oauth2.Token{
			AccessToken:  "access",
			RefreshToken: "refresh",
			TokenType:    "Bearer",
			Expiry:       expiry,
		})
		if err != nil {
			t.Fatalf("failed to update token: %v", err)
		}

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}

		token := loaded.Credentials.Spotify.Token()
		if token == nil {
			t.Fatal("expected token to be loaded")
		}
		if token.AccessToken != "access" || token.RefreshToken != "refresh" {
			t.Errorf("unexpected token %+v", token)
		}
		if !token.Expiry.Equal(expiry) {
			t.Errorf("expected expiry %v, got %v", expiry, token.Expiry)
		}
		if loaded.Pipeline.CallTimeout.Duration != 60*time.Second {
			t.Errorf("expected call timeout to survive save, got %v", loaded.Pipeline.CallTimeout.Duration)
		}
	})

	t.Run("Update Keeps Refresh Token", func(t *testing.T) {
		spotify := SpotifyConfig{RefreshToken: "keep-me"}
		if err := spotify.Update(&oauth2.Token{AccessToken: "new"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if spotify.RefreshToken != "keep-me" {
			t.Errorf("expected refresh token to be kept, got %q", spotify.RefreshToken)
		}
		if err := spotify.Update(nil); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("Token Is Nil Without Credentials", func(t *testing.T) {
		if tok := (SpotifyConfig{}).Token(); tok != nil {
			t.Errorf("expected nil token, got %+v", tok)
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		config := DefaultConfig()
		env := map[string]string{
			"OPENAI_API_KEY":        "sk-env",
			"SPOTIFY_CLIENT_ID":     "env-id",
			"SPOTIFY_CLIENT_SECRET": "env-secret",
			"SPOTIFY_SCOPE":         "playlist-modify-private",
			"SPOTIFY_REDIRECT_URI":  "  ",
		}
		config.ApplyEnv(func(k string) string { return env[k] })

		if config.Credentials.OpenAI.APIKey != "sk-env" {
			t.Errorf("expected api key from env, got %s", config.Credentials.OpenAI.APIKey)
		}
		if config.Credentials.Spotify.ClientID != "env-id" {
			t.Errorf("expected client id from env, got %s", config.Credentials.Spotify.ClientID)
		}
		if got := config.Credentials.Spotify.Scope; got != "playlist-modify-private" {
			t.Errorf("unexpected scope %q", got)
		}
		if config.Credentials.Spotify.RedirectURI != "http://127.0.0.1:3000/callback" {
			t.Errorf("blank env value should not override, got %s", config.Credentials.Spotify.RedirectURI)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*Config)
		}{
			{name: "empty inbox", mutate: func(c *Config) { c.Pipeline.Inbox = "" }},
			{name: "empty playlist", mutate: func(c *Config) { c.Pipeline.Playlist = " " }},
			{name: "zero limit", mutate: func(c *Config) { c.Pipeline.SearchLimit = 0 }},
			{name: "limit above provider max", mutate: func(c *Config) { c.Pipeline.SearchLimit = 51 }},
			{name: "zero workers", mutate: func(c *Config) { c.Pipeline.Workers = 0 }},
			{name: "zero timeout", mutate: func(c *Config) { c.Pipeline.CallTimeout.Duration = 0 }},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.mutate(config)
				if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})
}
