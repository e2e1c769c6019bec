package models

import "time"

// ProductSession is the working set of one product's barcode and its captured photos.
type ProductSession struct {
	ID          string    `json:"id"`
	ProductCode string    `json:"product_code"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProcessedImage is the artifact produced for one captured photo
type ProcessedImage struct {
	OriginalURI  string `json:"original_uri"`
	ProcessedURI string `json:"processed_uri"`
	Filename     string `json:"filename"`
}

// FileInfo describes a stored product image
type FileInfo struct {
	Filename string    `json:"filename"`
	Path     string    `json:"path"`
	URL      string    `json:"url"`
	Size     int64     `json:"size"`
	Created  time.Time `json:"created"`
}

// UploadResult is the body returned by POST /api/upload
type UploadResult struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimetype"`
}

// FileList is the body returned by GET /api/upload/list
type FileList struct {
	Success bool       `json:"success"`
	Files   []FileInfo `json:"files"`
	Count   int        `json:"count"`
}

// FileDetail is the body returned by GET /api/upload/{filename}
type FileDetail struct {
	Success bool `json:"success"`
	FileInfo
}

type ErrorResponse struct {
	Error string `json:"error"`
}
