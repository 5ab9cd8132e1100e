package domain

import "time"

// AuditReport lists the extracted fields a stored document is missing.
type AuditReport struct {
	DocumentID    int64     `json:"document_id"`
	FileType      FileType  `json:"filetype"`
	UploadedAt    time.Time `json:"uploaded_at"`
	LineItems     int       `json:"line_items"`
	MissingFields []string  `json:"missing_fields"`
}

func (r AuditReport) Complete() bool {
	return len(r.MissingFields) == 0
}
