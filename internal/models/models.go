package models

// RawPage is one page of a parsed document.
type RawPage struct {
	PageContent string `json:"page_content"`
	PageNumber  int    `json:"page_number"` // 1-based, source order
}

// Chunk is one unit of indexable text cut from a page.
//
// TruncatedText is the whole cleaned page text cut to a byte budget, not the
// chunk's own text. Every chunk of a page carries the same value.
type Chunk struct {
	Content       string `json:"content"`
	PageNumber    int    `json:"page_number"`
	Index         int    `json:"index"` // position within the page
	TruncatedText string `json:"truncated_text"`
}

// RecordMetadata is what the vector index stores next to each vector.
type RecordMetadata struct {
	Text       string `json:"text"`
	PageNumber int    `json:"page_number"`
}

// EmbeddedRecord is a chunk ready to be upserted.
// ID is the content hash of the chunk, so identical text maps to one record.
type EmbeddedRecord struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata RecordMetadata `json:"metadata"`
}
