package barcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/lehigh-university-libraries/productphoto/internal/gemini"
	"github.com/lehigh-university-libraries/productphoto/internal/naming"
	"github.com/lehigh-university-libraries/productphoto/internal/ollama"
	"github.com/lehigh-university-libraries/productphoto/internal/openai"
	"github.com/lehigh-university-libraries/productphoto/internal/providers"
)

// ErrScanNotFound means no product code could be read from the photo.
// The user should retry the scan or type the code in.
var ErrScanNotFound = errors.New("no barcode found")

const (
	minDigits = 6
	maxDigits = 14
)

const prompt = `You are reading a product label photographed by a phone camera.
Find the barcode (EAN-13, EAN-8, UPC-A or ITF-14) and return ONLY the digits printed under it,
with no spaces, punctuation or explanation.
If there is no readable barcode in the photo, answer exactly NONE.`

var digitRuns = regexp.MustCompile(`\d[\d \-]*\d`)

// Reader decodes product codes from photos with a vision provider.
type Reader struct {
	Provider providers.Provider
	Model    string
}

// NewReader returns a Reader backed by the named provider (gemini, openai or ollama).
func NewReader(provider, model string) (*Reader, error) {
	if provider == "" {
		provider = "gemini"
	}
	if model == "" {
		model = providers.DefaultModel(provider)
	}

	var p providers.Provider
	switch provider {
	case "gemini":
		p = gemini.New()
	case "openai":
		p = openai.New()
	case "ollama":
		p = ollama.New()
	default:
		return nil, fmt.Errorf("unsupported scan provider: %s", provider)
	}

	return &Reader{Provider: p, Model: model}, nil
}

// Read returns the product code printed under the barcode in image.
func (r *Reader) Read(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("%w: empty image", ErrScanNotFound)
	}

	answer, err := r.Provider.ExtractText(ctx, providers.Config{
		Model:       r.Model,
		Temperature: 0,
		Prompt:      prompt,
		Image:       image,
	})
	if err != nil {
		return "", fmt.Errorf("failed to read barcode: %w", err)
	}

	code, err := Normalize(answer)
	if err != nil {
		slog.Warn("Provider answer did not contain a product code", "answer", answer)
		return "", err
	}

	slog.Info("Barcode read", "product_code", code, "model", r.Model)
	return code, nil
}

// Normalize pulls the product code out of a free-form answer. The longest
// digit run wins; codes with a GS1 length must carry a valid check digit.
func Normalize(answer string) (string, error) {
	if strings.EqualFold(strings.TrimSpace(answer), "none") {
		return "", ErrScanNotFound
	}

	best := ""
	for _, run := range digitRuns.FindAllString(answer, -1) {
		digits := strings.NewReplacer(" ", "", "-", "").Replace(run)
		if len(digits) > len(best) {
			best = digits
		}
	}

	if len(best) < minDigits || len(best) > maxDigits {
		return "", fmt.Errorf("%w: no %d-%d digit code in %q", ErrScanNotFound, minDigits, maxDigits, answer)
	}

	switch len(best) {
	case 8, 12, 13, 14:
		if !ValidCheckDigit(best) {
			return "", fmt.Errorf("%w: bad check digit in %s", ErrScanNotFound, best)
		}
	}

	return best, nil
}

// ValidCheckDigit verifies the GS1 (EAN/UPC/ITF) mod-10 check digit.
func ValidCheckDigit(code string) bool {
	if len(code) < 2 {
		return false
	}

	sum := 0
	weight := 3
	for i := len(code) - 2; i >= 0; i-- {
		c := code[i]
		if c < '0' || c > '9' {
			return false
		}
		sum += int(c-'0') * weight
		if weight == 3 {
			weight = 1
		} else {
			weight = 3
		}
	}

	check := (10 - sum%10) % 10
	return int(code[len(code)-1]-'0') == check
}

// Manual validates a code typed in by the user after a failed scan.
func Manual(code string) (string, error) {
	code = strings.TrimSpace(code)
	if err := naming.Validate(code); err != nil {
		return "", err
	}
	return code, nil
}
