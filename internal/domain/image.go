package domain

import "time"

// ImageMeta is one entry in the plaintext image index. It exists in 1:1
// correspondence with an encrypted blob file; title, size and mime type are
// readable without decrypting the blob so listing stays cheap. The
// EncryptionVersion flag lets the migration job skip already-upgraded blobs
// without opening them.
type ImageMeta struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Filename          string    `json:"filename"`
	Size              int64     `json:"size"`
	MimeType          string    `json:"mimeType"`
	Created           time.Time `json:"created"`
	LastModified      time.Time `json:"lastModified"`
	EncryptionVersion int       `json:"encryptionVersion"`
}
