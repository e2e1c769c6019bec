package barcode

import (
	"context"
	"errors"
	"testing"

	"github.com/lehigh-university-libraries/productphoto/internal/naming"
	"github.com/lehigh-university-libraries/productphoto/internal/providers"
)

type fakeProvider struct {
	answer string
	err    error
	got    providers.Config
}

func (f *fakeProvider) ExtractText(_ context.Context, config providers.Config) (string, error) {
	f.got = config
	return f.answer, f.err
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		answer   string
		expected string
		wantErr  bool
	}{
		{name: "bare ean13", answer: "7791234567898", expected: "7791234567898"},
		{name: "spaced digits", answer: "7 791234 567898", expected: "7791234567898"},
		{name: "chatty answer", answer: "The barcode reads 7791234567898.", expected: "7791234567898"},
		{name: "upc-a", answer: "036000291452", expected: "036000291452"},
		{name: "ean8", answer: "96385074", expected: "96385074"},
		{name: "internal sku", answer: "7791234", expected: "7791234"},
		{name: "none", answer: " NONE ", wantErr: true},
		{name: "too short", answer: "123", wantErr: true},
		{name: "bad check digit", answer: "7791234567890", wantErr: true},
		{name: "empty", answer: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Normalize(tt.answer)
			if tt.wantErr {
				if !errors.Is(err, ErrScanNotFound) {
					t.Errorf("Expected ErrScanNotFound, got %v (%s)", err, result)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestValidCheckDigit(t *testing.T) {
	valid := []string{"4006381333931", "036000291452", "96385074", "10012345678902"}
	for _, code := range valid {
		if !ValidCheckDigit(code) {
			t.Errorf("Expected %s to be valid", code)
		}
	}
	invalid := []string{"4006381333932", "0360002914a2", "1"}
	for _, code := range invalid {
		if ValidCheckDigit(code) {
			t.Errorf("Expected %s to be invalid", code)
		}
	}
}

func TestRead(t *testing.T) {
	provider := &fakeProvider{answer: "4006381333931"}
	r := &Reader{Provider: provider, Model: "test-model"}

	code, err := r.Read(context.Background(), []byte("jpeg"))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if code != "4006381333931" {
		t.Errorf("Expected 4006381333931, got %s", code)
	}
	if provider.got.Model != "test-model" || string(provider.got.Image) != "jpeg" {
		t.Errorf("Provider got unexpected config %+v", provider.got)
	}
}

func TestReadProviderError(t *testing.T) {
	quota := errors.New("quota exceeded")
	r := &Reader{Provider: &fakeProvider{err: quota}}
	_, err := r.Read(context.Background(), []byte("jpeg"))
	if !errors.Is(err, quota) {
		t.Errorf("Expected provider error, got %v", err)
	}
	if errors.Is(err, ErrScanNotFound) {
		t.Errorf("Provider failure must not read as a missing barcode: %v", err)
	}
	if _, err := r.Read(context.Background(), nil); !errors.Is(err, ErrScanNotFound) {
		t.Errorf("Expected ErrScanNotFound for empty image, got %v", err)
	}
}

func TestNewReaderUnknownProvider(t *testing.T) {
	if _, err := NewReader("tesseract", ""); err == nil {
		t.Error("Expected error for unsupported provider")
	}
	r, err := NewReader("ollama", "")
	if err != nil {
		t.Fatal(err)
	}
	if r.Model == "" {
		t.Error("Expected a default model")
	}
}

func TestManual(t *testing.T) {
	code, err := Manual("  7791234 ")
	if err != nil || code != "7791234" {
		t.Errorf("Expected 7791234, got %q %v", code, err)
	}
	if _, err := Manual("a/b"); !errors.Is(err, naming.ErrInvalidCode) {
		t.Errorf("Expected ErrInvalidCode, got %v", err)
	}
}
