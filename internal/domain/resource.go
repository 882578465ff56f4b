package domain

import (
	"errors"
	"path"
	"strings"
	"time"
)

var ErrInvalidResource = errors.New("invalid resource")

// Resource is caller-owned metadata for an uploaded study document. The ingestion
// pipeline only reads it.
type Resource struct {
	ID           string    `json:"id" yaml:"id"`
	AthroID      string    `json:"athroId" yaml:"athroId"`
	Subject      string    `json:"subject" yaml:"subject"`
	Topic        string    `json:"topic" yaml:"topic"`
	ResourceType string    `json:"resourceType" yaml:"resourceType"`
	ResourcePath string    `json:"resourcePath" yaml:"resourcePath"`
	CreatedAt    time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" yaml:"updatedAt"`
}

func (r Resource) Validate() error {
	if strings.TrimSpace(r.ResourcePath) == "" {
		return errors.Join(ErrInvalidResource, errors.New("resourcePath is required"))
	}
	return nil
}

// FileName is the last element of the storage path.
func (r Resource) FileName() string {
	p := strings.TrimSpace(r.ResourcePath)
	if p == "" {
		return ""
	}
	return path.Base(strings.ReplaceAll(p, "\\", "/"))
}

// Extension is the lowercased file extension including the dot, or "".
func (r Resource) Extension() string {
	return strings.ToLower(path.Ext(r.FileName()))
}
