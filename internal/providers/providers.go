package providers

import (
	"context"
	"net/http"
	"os"
)

// Config represents the configuration for a vision provider call
type Config struct {
	Model       string
	Temperature float64
	Prompt      string
	Image       []byte
}

// MimeType sniffs the image content type, defaulting to jpeg like most camera output.
func (c Config) MimeType() string {
	if len(c.Image) == 0 {
		return "image/jpeg"
	}
	mime := http.DetectContentType(c.Image)
	switch mime {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return mime
	default:
		return "image/jpeg"
	}
}

// Provider defines the interface for a vision-capable LLM provider
type Provider interface {
	ExtractText(ctx context.Context, config Config) (string, error)
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case "openai":
		model := os.Getenv("OPENAI_MODEL")
		if model == "" {
			return "gpt-4o"
		}
		return model
	case "ollama":
		model := os.Getenv("OLLAMA_MODEL")
		if model == "" {
			return "mistral-small3.2:24b"
		}
		return model
	case "gemini":
		model := os.Getenv("GEMINI_MODEL")
		if model == "" {
			return "gemini-1.5-flash"
		}
		return model
	default:
		return ""
	}
}
