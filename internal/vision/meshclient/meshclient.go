// Package meshclient talks to the face-mesh sidecar that produces facial landmarks.
package meshclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/landmarks"
	"github.com/kozaktomas/attendance-kiosk/internal/vision"
)

const (
	defaultMeshURL  = "http://localhost:8000"
	landmarksPath   = "/mesh/landmarks"
	defaultTimeout  = 5 * time.Second
	maxResponseSize = 4 << 20
)

// Client computes face-mesh landmarks using the mesh server.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a mesh client. An empty baseURL selects the local default.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultMeshURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// meshFace is one face in the mesh server response.
type meshFace struct {
	Landmarks []landmarks.Point `json:"landmarks"`
	Score     float64           `json:"score"`
}

// meshResponse represents the response from the mesh server
type meshResponse struct {
	FacesCount int        `json:"faces_count"`
	Faces      []meshFace `json:"faces"`
}

func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame"`)
	h.Set("Content-Type", vision.DetectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// Landmarks returns the landmarks of the first face the mesh server reports.
func (c *Client) Landmarks(ctx context.Context, imageData []byte) (landmarks.Set, bool, error) {
	body, err := c.postMultipartImage(ctx, landmarksPath, imageData)
	if err != nil {
		return nil, false, err
	}

	var meshResp meshResponse
	if err := json.Unmarshal(body, &meshResp); err != nil {
		return nil, false, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(meshResp.Faces) == 0 || len(meshResp.Faces[0].Landmarks) == 0 {
		return nil, false, nil
	}
	return landmarks.Set(meshResp.Faces[0].Landmarks), true, nil
}

// Ping checks that the mesh server answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mesh server unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}
