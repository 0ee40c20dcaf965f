package model

// EvidenceBlob is the aggregated, sanitized text gathered for one entity.
// SourceURLs lists only the sources whose text made it into Text.
type EvidenceBlob struct {
	EntityName string   `json:"entity_name"`
	Text       string   `json:"text"`
	SourceURLs []string `json:"source_urls"`
}

// Empty reports whether the blob carries no usable text
func (b EvidenceBlob) Empty() bool {
	return len(b.Text) == 0
}

// FetchMeta contains HTTP metadata about a fetched source
type FetchMeta struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Bytes       int    `json:"bytes"`
}
