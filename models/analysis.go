package models

import "time"

// TextChunk is a fixed-size token window of one document.
// Text is the window's tokens joined by single spaces, so the original
// whitespace and punctuation of the source are not recoverable from it.
type TextChunk struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	TokenCount int    `json:"tokenCount"`
	StartToken int    `json:"startToken"`
	EndToken   int    `json:"endToken"`
}

// IndexSummary describes a document's vector index. It is derived, never stored.
type IndexSummary struct {
	VectorCount int `json:"vectorCount"`
	Dimensions  int `json:"dimensions"`
}

// SimilarityResult is one scored entry of a nearest-neighbor query.
type SimilarityResult struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// IndexInfo points callers at the stored index and carries the neighbor preview.
type IndexInfo struct {
	IndexKey         string             `json:"indexKey"`
	NearestNeighbors []SimilarityResult `json:"nearestNeighbors"`
}

// DocumentAnalysisResponse is the record produced by one analysis run.
type DocumentAnalysisResponse struct {
	DocumentID        string        `json:"documentId"`
	CreatedAt         time.Time     `json:"createdAt"`
	FileName          string        `json:"fileName"`
	MimeType          string        `json:"mimeType"`
	FileSize          int           `json:"fileSize"`
	NumPages          *int          `json:"numPages,omitempty"`
	ContentHash       string        `json:"contentHash,omitempty"`
	TextPreview       string        `json:"textPreview"`
	TotalTokens       int           `json:"totalTokens"`
	ChunkCount        int           `json:"chunkCount"`
	Chunks            []TextChunk   `json:"chunks"`
	Steps             AnalysisSteps `json:"steps"`
	EmbeddingsSummary IndexSummary  `json:"embeddingsSummary"`
	IndexInfo         IndexInfo     `json:"redisInfo"`
}

// ChunkTexts returns the text of every chunk in order.
func (r *DocumentAnalysisResponse) ChunkTexts() []string {
	texts := make([]string, len(r.Chunks))
	for i, c := range r.Chunks {
		texts[i] = c.Text
	}
	return texts
}

// Summary projects the record onto its list-view fields.
func (r *DocumentAnalysisResponse) Summary() DocumentSummary {
	return DocumentSummary{
		DocumentID:  r.DocumentID,
		FileName:    r.FileName,
		MimeType:    r.MimeType,
		CreatedAt:   r.CreatedAt,
		TotalTokens: r.TotalTokens,
		ChunkCount:  r.ChunkCount,
	}
}

// DocumentSummary is the list view of a stored analysis record.
type DocumentSummary struct {
	DocumentID  string    `json:"documentId"`
	FileName    string    `json:"fileName"`
	MimeType    string    `json:"mimeType"`
	CreatedAt   time.Time `json:"createdAt"`
	TotalTokens int       `json:"totalTokens"`
	ChunkCount  int       `json:"chunkCount"`
}
