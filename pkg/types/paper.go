// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// PaperIdentifier is an opaque identifier for a paper, normally a DOI.
type PaperIdentifier string

func (id PaperIdentifier) String() string { return string(id) }

// PaperMetadata holds the bibliographic record for a paper as resolved by
// the metadata service. It is read-only once created.
type PaperMetadata struct {
	// Identifier is the normalized identifier the record was resolved from.
	Identifier PaperIdentifier `json:"identifier" yaml:"identifier"`

	// Title is the paper title.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Publisher is the publishing organisation.
	Publisher string `json:"publisher" yaml:"publisher"`

	// Journal is the container title (journal or proceedings name).
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`

	// PublicationDate is the print, online, or issued date, whichever is
	// available first. Zero when unknown.
	PublicationDate time.Time `json:"publication_date" yaml:"publication_date"`

	// SourceURL is the canonical landing page for the paper.
	SourceURL string `json:"source_url" yaml:"source_url"`

	// Abstract is the paper abstract, if the service returned one.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`
}

// DownloadStatus tracks the state of an artifact download.
type DownloadStatus string

const (
	DownloadPending   DownloadStatus = "pending"
	DownloadSucceeded DownloadStatus = "succeeded"
	DownloadFailed    DownloadStatus = "failed"
)

// ArtifactHandle references a PDF stored on the local filesystem.
type ArtifactHandle struct {
	// Identifier is the paper the artifact belongs to.
	Identifier PaperIdentifier `json:"identifier" yaml:"identifier"`

	// Path is the local filesystem path to the PDF.
	Path string `json:"path" yaml:"path"`

	// Status reports whether the download succeeded.
	Status DownloadStatus `json:"status" yaml:"status"`

	// Source names the route the artifact came through: "browser", "cache",
	// "openalex", "publisher" or "url".
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// SizeBytes is the verified size of the file.
	SizeBytes int64 `json:"size_bytes" yaml:"size_bytes"`
}

// CharRange is a half-open [Start, End) range of character offsets.
type CharRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// PreparedText is the bounded excerpt of a paper submitted for extraction.
// len([]rune(Excerpt)) never exceeds the character budget it was cut with.
type PreparedText struct {
	Identifier      PaperIdentifier `json:"identifier" yaml:"identifier"`
	Excerpt         string          `json:"excerpt" yaml:"excerpt"`
	Truncated       bool            `json:"truncated" yaml:"truncated"`
	SourceCharRange CharRange       `json:"source_char_range" yaml:"source_char_range"`

	// TotalChars is the character count of the full extracted text.
	TotalChars int `json:"total_chars" yaml:"total_chars"`
}
