package entity

import "time"

// Document is one uploaded invoice file moving through the processing lifecycle
type Document struct {
	ID                 string            `json:"id"`
	Filename           string            `json:"filename"`
	OriginalFilename   string            `json:"original_filename"`
	StoragePath        string            `json:"storage_path"`
	MimeType           string            `json:"mime_type"`
	FileSize           int64             `json:"file_size"`
	ContentHash        string            `json:"content_hash"`
	Status             string            `json:"status"`
	ErrorMessage       *string           `json:"error_message,omitempty"`
	ExtractedData      *ExtractedData    `json:"extracted_data,omitempty"`
	ConfidenceScores   *ConfidenceScores `json:"confidence_scores,omitempty"`
	ExternalDocumentID *string           `json:"external_document_id,omitempty"`
	ExternalBookingID  *string           `json:"external_booking_id,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// Clone returns a copy that can be mutated without touching the original
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	cp := *d
	cp.ErrorMessage = cloneString(d.ErrorMessage)
	cp.ExternalDocumentID = cloneString(d.ExternalDocumentID)
	cp.ExternalBookingID = cloneString(d.ExternalBookingID)
	if d.ExtractedData != nil {
		ed := d.ExtractedData.Clone()
		cp.ExtractedData = ed
	}
	if d.ConfidenceScores != nil {
		cs := d.ConfidenceScores.Clone()
		cp.ConfidenceScores = &cs
	}
	return &cp
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}

// StringValue dereferences p, returning "" for nil
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
