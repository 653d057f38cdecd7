package model

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document represents a source document
type Document struct {
	ID        int64     `json:"id"`
	RID       uuid.UUID `json:"rid"`
	Title     string    `json:"title"`
	Source    string    `json:"source,omitempty"`
	Language  string    `json:"language,omitempty"`
	Content   string    `json:"content,omitempty" db:"-"` // Temporary field for processing, not stored in DB
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NodeID is the id of the document node in the knowledge graph.
func (d *Document) NodeID() string {
	if d.Source != "" && d.Language != "" {
		return "file::" + d.Source
	}
	return "document::" + d.RID.String()
}

var languagesByExtension = map[string]string{
	".py":  "python",
	".go":  "go",
	".c":   "cpp",
	".h":   "cpp",
	".cc":  "cpp",
	".cpp": "cpp",
	".hpp": "cpp",
	".qml": "qml",
}

// DetectLanguage returns the source language of a code file, or an empty
// string for prose and unknown extensions.
func DetectLanguage(filePath string) string {
	return languagesByExtension[strings.ToLower(filepath.Ext(filePath))]
}

// NewDocumentFromFile reads a file and creates a Document with the file content
// The title defaults to the filename, and source to the file path
func NewDocumentFromFile(filePath string, metadata Metadata) (*Document, error) {
	content, err := os.ReadFile(filePath) // #nosec G304 -- path is chosen by the caller
	if err != nil {
		return nil, err
	}

	// Get filename without extension for default title
	filename := filepath.Base(filePath)
	title := filename[:len(filename)-len(filepath.Ext(filename))]
	if title == "" {
		title = filename
	}

	return &Document{
		Title:    title,
		Source:   filePath,
		Language: DetectLanguage(filePath),
		Content:  string(content),
		Metadata: metadata,
	}, nil
}
