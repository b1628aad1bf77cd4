package model

// Import log statuses.
const (
	StatusImported = "imported"
	StatusSkipped  = "skipped"
)

// Skip reasons recorded in the import log.
const (
	ReasonDuplicate  = "duplicate"
	ReasonMissingURL = "missing url"
)

// LogEntry is the outcome for one incoming bookmark.
type LogEntry struct {
	URL    string `json:"url"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// ImportedBookmark describes a bookmark row created by an import.
type ImportedBookmark struct {
	ID    string   `json:"id"`
	URL   string   `json:"url"`
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

// UnresolvedFolder is an incoming folder that could not be placed.
type UnresolvedFolder struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// ImportResult is returned to the caller of an import; it is never stored.
type ImportResult struct {
	Imported   []ImportedBookmark `json:"imported"`
	Skipped    int                `json:"skipped"`
	ImportLog  []LogEntry         `json:"importLog"`
	Folders    []string           `json:"folders"`
	Unresolved []UnresolvedFolder `json:"unresolved"`
}

// NewImportResult creates an ImportResult with initialized slices.
func NewImportResult() *ImportResult {
	return &ImportResult{
		Imported:   []ImportedBookmark{},
		ImportLog:  []LogEntry{},
		Folders:    []string{},
		Unresolved: []UnresolvedFolder{},
	}
}

// PushError records a per-record sync failure.
type PushError struct {
	URL    string `json:"url,omitempty"`
	Folder string `json:"folder,omitempty"`
	Error  string `json:"error"`
}

// PushResult summarizes a sync push.
type PushResult struct {
	Created int         `json:"created"`
	Updated int         `json:"updated"`
	Errors  []PushError `json:"errors"`
}

// Skip records a skipped bookmark in the log and the skip count.
func (r *ImportResult) Skip(url, reason string) {
	r.Skipped++
	r.ImportLog = append(r.ImportLog, LogEntry{URL: url, Status: StatusSkipped, Reason: reason})
}
