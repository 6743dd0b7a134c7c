// Package storage is the document store behind the map backend. Paths are
// relative to the data root: maps live under MapsDir, case briefs under CasesDir.
package storage

import "github.com/starford/casemap/internal/models"

// Layout of the data root.
const (
	MapsDir  = "maps"
	CasesDir = "cases"

	MapExt  = ".json"
	CaseExt = ".md"
)

// MapPath returns the document path of a case's mind map.
func MapPath(caseID string) string {
	return MapsDir + "/" + caseID + MapExt
}

// CasePath returns the document path of a case brief.
func CasePath(caseID string) string {
	return CasesDir + "/" + caseID + CaseExt
}

// Provider is the interface for document operations.
type Provider interface {
	// List returns metadata for every file with extension ext under dir.
	// A missing dir yields an empty list.
	List(dir, ext string) ([]models.DocumentMetadata, error)
	// Read returns the raw bytes at path.
	Read(path string) ([]byte, error)
	// Exists reports whether a regular file exists at path.
	Exists(path string) (bool, error)
	// Write atomically replaces the content at path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
}
