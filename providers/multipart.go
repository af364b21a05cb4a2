package providers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/goliatone/go-social/transport"
)

// MultipartFile is the single binary part of a multipart upload.
type MultipartFile struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// EncodeMultipart writes fields in order followed by file, and returns the body
// with its boundary-bearing content type.
func EncodeMultipart(fields [][2]string, file MultipartFile) ([]byte, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", err
		}
	}
	if file.Field != "" {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="`+file.Field+`"; filename="`+file.Filename+`"`)
		contentType := file.ContentType
		if contentType == "" {
			contentType = defaultMediaContentType
		}
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body.Bytes(), writer.FormDataContentType(), nil
}

// CallMultipart posts a multipart body and decodes a 2xx JSON response into
// target.
func (c *APIClient) CallMultipart(ctx context.Context, operation string, req transport.Request, fields [][2]string, file MultipartFile, target any) (transport.Response, error) {
	body, contentType, err := EncodeMultipart(fields, file)
	if err != nil {
		return transport.Response{}, ClassifyError(c.Platform, operation, nil, err)
	}
	headers := map[string]string{"Accept": "application/json", "Content-Type": contentType}
	for key, value := range req.Headers {
		headers[key] = value
	}
	req.Headers = headers
	req.Body = body
	if req.Method == "" {
		req.Method = http.MethodPost
	}
	req = c.withTimeout(req)
	res, err := c.REST.Do(ctx, req)
	return c.finish(operation, res, err, target)
}
