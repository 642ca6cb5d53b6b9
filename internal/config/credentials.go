package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Credentials carries the API keys for external services. They come from the
// environment rather than the config file so a shared config can be committed
// without secrets.
type Credentials struct {
	GoogleSpeechAPIKey string `envconfig:"GOOGLE_SPEECH_API_KEY"`
	OpenAIAPIKey       string `envconfig:"OPENAI_API_KEY"`
	VisionAPIKey       string `envconfig:"VISION_API_KEY"`
}

// LoadCredentials reads credentials from the environment, honoring a .env
// file in the working directory when present.
func LoadCredentials() (Credentials, error) {
	// Missing .env is fine; explicit environment still applies.
	_ = godotenv.Load()

	var creds Credentials
	if err := envconfig.Process("", &creds); err != nil {
		return Credentials{}, fmt.Errorf("read credentials from environment: %w", err)
	}
	creds.GoogleSpeechAPIKey = strings.TrimSpace(creds.GoogleSpeechAPIKey)
	creds.OpenAIAPIKey = strings.TrimSpace(creds.OpenAIAPIKey)
	creds.VisionAPIKey = strings.TrimSpace(creds.VisionAPIKey)
	return creds, nil
}
