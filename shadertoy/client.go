// Package shadertoy imports shader code from the Shadertoy API.
package shadertoy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

const DefaultBaseURL = "https://www.shadertoy.com/api/v1"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrNoKey       = errors.New("shadertoy API key not set, see https://www.shadertoy.com/howto#q2")
	ErrNoImagePass = errors.New("shader has no image pass")
)

// --- Structs for Shadertoy API Response ---

type Response struct {
	Shader *Shader `json:"Shader"`
	Error  string  `json:"Error"`
}

type Shader struct {
	Info       Info         `json:"info"`
	RenderPass []RenderPass `json:"renderpass"`
}

type Info struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type RenderPass struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type headerTransport struct {
	Transport http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", "goshaderjam")
	return t.Transport.RoundTrip(req)
}

// Client fetches shaders by ID.
type Client struct {
	key     string
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func NewClient(key, baseURL string, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		key:     key,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &headerTransport{Transport: http.DefaultTransport},
		},
		log: log.Named("shadertoy"),
	}
}

// ShaderID accepts either a bare ID or a shader page URL.
func ShaderID(idOrURL string) string {
	id := strings.TrimSuffix(strings.TrimSpace(idOrURL), "/")
	if strings.Contains(id, "/") {
		id = path.Base(id)
	}
	return id
}

// Fetch loads one shader. The shader must be published as public+api.
func (c *Client) Fetch(ctx context.Context, idOrURL string) (*Shader, error) {
	if c.key == "" {
		return nil, ErrNoKey
	}
	id := ShaderID(idOrURL)
	if id == "" {
		return nil, fmt.Errorf("empty shader id")
	}

	apiURL := fmt.Sprintf("%s/shaders/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	q := req.URL.Query()
	q.Add("key", c.key)
	req.URL.RawQuery = q.Encode()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to shadertoy API failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to load shader %s, status code: %d", id, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read shader %s: %w", id, err)
	}
	var shaderResp Response
	if err := json.Unmarshal(body, &shaderResp); err != nil {
		return nil, fmt.Errorf("failed to decode shader JSON: %w", err)
	}
	if shaderResp.Error != "" {
		return nil, fmt.Errorf("shadertoy API error for %s: %s (is it public+api?)", id, shaderResp.Error)
	}
	if shaderResp.Shader == nil {
		return nil, fmt.Errorf("invalid JSON response: 'Shader' key is missing")
	}
	c.log.Info("Fetched shader",
		zap.String("id", id),
		zap.String("name", shaderResp.Shader.Info.Name),
		zap.String("user", shaderResp.Shader.Info.Username))
	return shaderResp.Shader, nil
}

// ImageCode returns the image pass, prefixed with the common pass when the
// shader has one. Buffer passes are ignored.
func (s *Shader) ImageCode() (string, error) {
	var common, image string
	found := false
	for _, pass := range s.RenderPass {
		switch pass.Type {
		case "common":
			common = pass.Code
		case "image":
			image = pass.Code
			found = true
		}
	}
	if !found {
		return "", ErrNoImagePass
	}
	if common != "" {
		return common + "\n" + image, nil
	}
	return image, nil
}

// FetchImageCode is Fetch followed by ImageCode.
func (c *Client) FetchImageCode(ctx context.Context, idOrURL string) (string, error) {
	s, err := c.Fetch(ctx, idOrURL)
	if err != nil {
		return "", err
	}
	return s.ImageCode()
}
