// Package uploader is the client for the image upload service
// (Cloudinary-style unsigned upload). Images go here FIRST; the backend
// only ever stores the resulting URL.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/sakif/campusfeed/internal/apperror"
)

// Client uploads images via multipart form POST.
type Client struct {
	uploadURL string
	preset    string
	cloudName string
	http      *http.Client
	logger    *slog.Logger
}

// Config for New. Preset and CloudName are the unsigned-upload
// parameters the service expects alongside the file.
type Config struct {
	UploadURL string
	Preset    string
	CloudName string
}

func New(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		uploadURL: cfg.UploadURL,
		preset:    cfg.Preset,
		cloudName: cfg.CloudName,
		http:      httpClient,
		logger:    logger,
	}
}

// uploadResponse is the slice of the service's response we care about.
type uploadResponse struct {
	SecureURL string `json:"secure_url"`
}

// Upload sends the image and returns its public HTTPS URL. The form
// layout (file, upload_preset, cloud_name) is the service's unsigned
// upload contract.
func (c *Client) Upload(ctx context.Context, filename string, content []byte) (string, error) {
	if len(content) == 0 {
		return "", apperror.ValidationFailed("file", "image content is empty")
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("uploader: building form: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("uploader: writing file part: %w", err)
	}
	if err := form.WriteField("upload_preset", c.preset); err != nil {
		return "", fmt.Errorf("uploader: writing preset field: %w", err)
	}
	if err := form.WriteField("cloud_name", c.cloudName); err != nil {
		return "", fmt.Errorf("uploader: writing cloud_name field: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("uploader: closing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &buf)
	if err != nil {
		return "", fmt.Errorf("uploader: building request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperror.Unavailable("image upload", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperror.Unavailable("image upload",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var ur uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return "", apperror.DecodeFailed("image upload", fmt.Sprintf("decoding response: %v", err))
	}
	if ur.SecureURL == "" {
		return "", apperror.DecodeFailed("image upload", "response has no secure_url")
	}

	c.logger.Debug("image uploaded", slog.String("url", ur.SecureURL))
	return ur.SecureURL, nil
}
