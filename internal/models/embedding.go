package models

// SourceDocument is one evidence file as read from disk
type SourceDocument struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// EmbeddedRecord is the persisted row: the document text, its source label and its vector
type EmbeddedRecord struct {
	Vector []float32 `json:"vector"`
	Text   string    `json:"text"`
	Source string    `json:"source"`
}

// Record is a single nearest-neighbour hit. The stored vector is not returned.
type Record struct {
	Text     string  `json:"text"`
	Source   string  `json:"source"`
	Distance float32 `json:"distance"`
}

// Valid reports whether the row carries the fields every caller relies on
func (r Record) Valid() bool {
	return r.Text != "" && r.Source != ""
}

type PromptResponse struct {
	Query   string
	Context string
	Content string
}
