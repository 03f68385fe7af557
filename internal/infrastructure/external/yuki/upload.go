package yuki

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/garyjia/invoice-booking/internal/application/port"
	"go.uber.org/zap"
)

// UploadDocument archives content through the HTTP upload endpoint. The
// response body is the id of the archived document.
func (c *Client) UploadDocument(ctx context.Context, session, administrationID string, content []byte, meta port.UploadMetadata) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"SessionID", session},
		{"AdministrationID", administrationID},
		{"DocumentName", meta.Name},
		{"DocumentDescription", meta.Description},
		{"DocumentDate", meta.Date.Format(dateLayout)},
		{"DocumentType", meta.DocumentType},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return "", fmt.Errorf("upload: failed to write field %s: %w", f.name, err)
		}
	}

	mimeType := meta.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, meta.FileName))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("upload: failed to create file part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("upload: failed to write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("upload: failed to finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(uploadEndpoint), &buf)
	if err != nil {
		return "", fmt.Errorf("upload: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	c.logger.Debug("Uploading document",
		zap.String("administration_id", administrationID),
		zap.String("file_name", meta.FileName),
		zap.Int("size", len(content)))

	body, err := c.send(req)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	id := strings.TrimSpace(string(body))
	if id == "" {
		return "", errors.New("upload: empty document id in response")
	}
	return id, nil
}
