// file: services/portainer_service.go
package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/noob-master-jpb/CTFd/config"
)

// Payload template substitution points. The template must contain an
// Image field and a host binding for TCP port 80.
const templateBindingKey = "80/tcp"

// BackendResponse is the raw outcome of a backend call. Interpreting the
// status code is the caller's job; the client only distinguishes "the
// request happened" from transport failure.
type BackendResponse struct {
	StatusCode int
	Body       []byte
}

// Accepted reports whether the backend answered with one of the status
// codes the API treats as success.
func (r *BackendResponse) Accepted() bool {
	switch r.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent:
		return true
	}
	return false
}

// ContainerID extracts the backend container id from a create response.
func (r *BackendResponse) ContainerID() (string, error) {
	var body struct {
		ID string `json:"Id"`
	}
	if err := json.Unmarshal(r.Body, &body); err != nil || body.ID == "" {
		return "", &MalformedResponseError{Op: "create"}
	}
	return body.ID, nil
}

// PortainerClient talks to the orchestration backend's container API.
// It owns no persisted state; each method is a single HTTP round trip.
type PortainerClient struct {
	baseURL  string
	endpoint string
	apiKey   string
	template []byte
	http     *http.Client
}

// NewPortainerClient validates the creation-payload template and builds
// the shared HTTP client. The backend sits behind a self-signed cert, so
// verification is disabled, matching how the deployment runs today.
func NewPortainerClient(cfg config.Portainer) (*PortainerClient, error) {
	template, err := os.ReadFile(cfg.PayloadFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateMissing, err)
	}
	if err := validateTemplate(template); err != nil {
		return nil, err
	}

	return &PortainerClient{
		baseURL:  cfg.BaseURL(),
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		template: template,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}, nil
}

// validateTemplate checks both substitution points exist before the
// first request ever needs them.
func validateTemplate(template []byte) error {
	if _, _, err := substitute(template, "image", 80); err != nil {
		return err
	}
	return nil
}

// substitute unmarshals a fresh copy of the template and splices in the
// image and host port. Returning a fresh copy per call keeps the client
// safe for concurrent use.
func substitute(template []byte, image string, port int) (map[string]any, []byte, error) {
	var payload map[string]any
	if err := json.Unmarshal(template, &payload); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrTemplateMalformed, err)
	}
	if _, ok := payload["Image"]; !ok {
		return nil, nil, fmt.Errorf("%w: no Image field", ErrTemplateMalformed)
	}
	payload["Image"] = image

	hostConfig, ok := payload["HostConfig"].(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("%w: no HostConfig object", ErrTemplateMalformed)
	}
	bindings, ok := hostConfig["PortBindings"].(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("%w: no PortBindings object", ErrTemplateMalformed)
	}
	binding, ok := bindings[templateBindingKey].([]any)
	if !ok || len(binding) == 0 {
		return nil, nil, fmt.Errorf("%w: no %s binding", ErrTemplateMalformed, templateBindingKey)
	}
	first, ok := binding[0].(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("%w: bad %s binding entry", ErrTemplateMalformed, templateBindingKey)
	}
	first["HostPort"] = fmt.Sprintf("%d", port)

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrTemplateMalformed, err)
	}
	return payload, encoded, nil
}

// CreateContainer asks the backend to create a container named name from
// image, publishing container port 80 on the given host port.
func (c *PortainerClient) CreateContainer(ctx context.Context, name, image string, port int) (*BackendResponse, error) {
	_, payload, err := substitute(c.template, image, port)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("api/endpoints/%s/docker/containers/create?name=%s",
		c.endpoint, url.QueryEscape(name))
	return c.do(ctx, "create", http.MethodPost, path, payload)
}

func (c *PortainerClient) StartContainer(ctx context.Context, containerID string) (*BackendResponse, error) {
	path := fmt.Sprintf("api/endpoints/%s/docker/containers/%s/start", c.endpoint, containerID)
	return c.do(ctx, "start", http.MethodPost, path, nil)
}

func (c *PortainerClient) DeleteContainer(ctx context.Context, containerID string) (*BackendResponse, error) {
	path := fmt.Sprintf("api/endpoints/%s/docker/containers/%s?force=true", c.endpoint, containerID)
	return c.do(ctx, "delete", http.MethodDelete, path, nil)
}

// ListContainers is diagnostic only; nothing on the provisioning path
// depends on it.
func (c *PortainerClient) ListContainers(ctx context.Context) (*BackendResponse, error) {
	path := fmt.Sprintf("api/endpoints/%s/docker/containers/json", c.endpoint)
	return c.do(ctx, "list", http.MethodGet, path, nil)
}

func (c *PortainerClient) do(ctx context.Context, op, method, path string, payload []byte) (*BackendResponse, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return &BackendResponse{StatusCode: resp.StatusCode, Body: data}, nil
}
