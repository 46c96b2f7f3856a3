// Package client is a thin Go client for the wxdown-service HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client { return &Client{BaseURL: baseURL, HTTP: http.DefaultClient} }

// Credential mirrors the API's credential shape. Valid reflects the
// server-side freshness window at the time of the call.
type Credential struct {
	BizID       string `json:"bizId"`
	Uin         string `json:"uin"`
	Key         string `json:"key"`
	PassTicket  string `json:"passTicket"`
	WapSid2     string `json:"wapSid2"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
	CapturedAt  string `json:"capturedAt"`
	Valid       bool   `json:"valid"`
}

type ProxyStatus struct {
	Running bool `json:"running"`
	Port    int  `json:"port"`
	Active  bool `json:"active"`
}

func (c *Client) ListCredentials(ctx context.Context) ([]Credential, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/credentials", nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("list credentials: status %d", resp.StatusCode)
	}
	var out struct {
		Items []Credential `json:"items"`
		Total int          `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, 0, err
	}
	return out.Items, out.Total, nil
}

func (c *Client) RemoveCredential(ctx context.Context, biz string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+"/api/credentials/"+biz, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("remove credential %s: status %d", biz, resp.StatusCode)
	}
	return nil
}

func (c *Client) StartProxy(ctx context.Context) (int, error) {
	var out struct {
		Port int `json:"port"`
	}
	if err := c.post(ctx, "/api/proxy/start", nil, &out); err != nil {
		return 0, err
	}
	return out.Port, nil
}

func (c *Client) StopProxy(ctx context.Context) error {
	return c.post(ctx, "/api/proxy/stop", nil, nil)
}

func (c *Client) GetProxyStatus(ctx context.Context) (ProxyStatus, error) {
	var st ProxyStatus
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/proxy/status", nil)
	if err != nil {
		return st, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return st, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("proxy status: status %d", resp.StatusCode)
	}
	err = json.NewDecoder(resp.Body).Decode(&st)
	return st, err
}

// ExportPDF asks the service to render pageURL to a PDF. output is a
// server-side path; empty lets the server pick one. The resolved path
// is returned.
func (c *Client) ExportPDF(ctx context.Context, pageURL, output string) (string, error) {
	var out struct {
		Output string `json:"output"`
	}
	body := map[string]string{"url": pageURL, "output": output}
	if err := c.post(ctx, "/api/export", body, &out); err != nil {
		return "", err
	}
	return out.Output, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("POST %s: status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
