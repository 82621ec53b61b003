package backend

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"crewbe/internal/api"
	"crewbe/internal/services"
	"crewbe/internal/upload"
)

// IssueWriteCredential asks the API for a presigned PUT scoped to key.
func (c *Client) IssueWriteCredential(ctx context.Context, key, contentType string) (upload.Credential, error) {
	var out api.PresignResponse
	err := c.doJSON(ctx, "presign", http.MethodPost, "/api/upload/presigned-url", api.PresignRequest{
		FileName: path.Base(key),
		FileType: contentType,
		S3Key:    key,
	}, &out)
	if err != nil {
		return upload.Credential{}, err
	}
	if out.S3Key != "" && out.S3Key != key {
		return upload.Credential{}, services.Wrap(services.ErrValidation, "backend", "presign",
			fmt.Sprintf("server scoped credential to %q instead of %q", out.S3Key, key), nil)
	}
	cred := upload.Credential{URL: out.PresignedURL, Key: key, Bucket: out.Bucket}
	if out.ExpiresIn > 0 {
		cred.ExpiresAt = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	}
	return cred, nil
}

// PutWithCredential writes the body to the presigned URL.
func (c *Client) PutWithCredential(ctx context.Context, cred upload.Credential, req upload.Request) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, cred.URL, req.Body)
	if err != nil {
		return fmt.Errorf("build presigned request: %w", err)
	}
	// Presigned PUTs reject chunked bodies.
	httpReq.ContentLength = req.Size
	httpReq.Header.Set("Content-Type", req.ContentType)
	httpReq.Header.Set("User-Agent", userAgent)
	return c.send(c.storage, httpReq, "presigned put", nil)
}

// PutProxied streams the body as multipart field "video" to the API, which
// stores it under a key of its choosing.
func (c *Client) PutProxied(ctx context.Context, req upload.Request) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreatePart(videoPartHeader(path.Base(req.Key), req.ContentType))
		if err == nil {
			_, err = io.Copy(part, req.Body)
		}
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/upload/direct", pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return "", err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var out api.DirectUploadResponse
	if err := c.send(c.api, httpReq, "direct upload", &out); err != nil {
		_ = pr.CloseWithError(err)
		return "", err
	}
	return strings.TrimSpace(out.S3Key), nil
}

func videoPartHeader(filename, contentType string) map[string][]string {
	if contentType == "" {
		contentType = "video/webm"
	}
	return map[string][]string{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="video"; filename=%q`, filename)},
		"Content-Type":        {contentType},
	}
}
