package naming

import (
	"errors"
	"strconv"
	"strings"
)

// Extension is appended to every allocated name before it is written or uploaded.
const Extension = ".png"

var ErrInvalidCode = errors.New("invalid product code")

// Allocate returns the output name for the photo at index within a product session.
// The first photo keeps the bare product code; later photos get "(n)" appended.
func Allocate(productCode string, index int) string {
	if index == 0 {
		return productCode
	}
	return productCode + "(" + strconv.Itoa(index) + ")"
}

// File is Allocate plus the fixed extension.
func File(productCode string, index int) string {
	return Allocate(productCode, index) + Extension
}

// Validate rejects codes that cannot safely become a filename.
func Validate(productCode string) error {
	code := strings.TrimSpace(productCode)
	if code == "" {
		return errors.Join(ErrInvalidCode, errors.New("product code is empty"))
	}
	if strings.ContainsAny(code, `/\`) || strings.Contains(code, "..") {
		return errors.Join(ErrInvalidCode, errors.New("product code contains path characters"))
	}
	return nil
}
