package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"hookvault/handlers"
	"hookvault/types"
)

// StatusError 节点返回非 2xx
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d, body %s", e.Op, e.StatusCode, strings.TrimSpace(e.Body))
}

// Client 访问单个节点的 API
type Client struct {
	base string
	http *http.Client
}

// New target 形如 "https://127.0.0.1:6000"；省略 scheme 时按 https 处理
func New(target string, hc *http.Client) *Client {
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}
	return &Client{base: strings.TrimRight(target, "/"), http: hc}
}

// SubmitTx 提交交易。执行失败时同时返回响应（含回执）和错误
func (c *Client) SubmitTx(ctx context.Context, tx *types.Transaction) (*handlers.TxResponse, error) {
	return c.postTx(ctx, "/tx", tx)
}

// Simulate 模拟执行，不落盘
func (c *Client) Simulate(ctx context.Context, tx *types.Transaction) (*handlers.TxResponse, error) {
	return c.postTx(ctx, "/simulate", tx)
}

func (c *Client) postTx(ctx context.Context, path string, tx *types.Transaction) (*handlers.TxResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(tx.Marshal()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-protobuf")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var out handlers.TxResponse
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	if resp.StatusCode != http.StatusOK {
		serr := &StatusError{Op: path, StatusCode: resp.StatusCode, Body: string(body)}
		if out.Error != "" {
			serr.Body = out.Error
		}
		if out.TxID == "" {
			return nil, serr
		}
		return &out, serr
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return &StatusError{Op: path, StatusCode: resp.StatusCode, Body: string(data)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) Account(ctx context.Context, addr types.Pubkey) (*handlers.AccountResponse, error) {
	var out handlers.AccountResponse
	if err := c.getJSON(ctx, "/account", url.Values{"address": {addr.String()}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) VaultConfig(ctx context.Context) (*handlers.VaultConfigResponse, error) {
	var out handlers.VaultConfigResponse
	if err := c.getJSON(ctx, "/vault/config", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Member(ctx context.Context, member types.Pubkey) (*handlers.MemberResponse, error) {
	var out handlers.MemberResponse
	if err := c.getJSON(ctx, "/vault/member", url.Values{"address": {member.String()}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Tasks queue 为空时查询节点默认队列
func (c *Client) Tasks(ctx context.Context, queue string) (*handlers.TasksResponse, error) {
	var q url.Values
	if queue != "" {
		q = url.Values{"queue": {queue}}
	}
	var out handlers.TasksResponse
	if err := c.getJSON(ctx, "/tasks", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Status(ctx context.Context) (*handlers.StatusResponse, error) {
	var out handlers.StatusResponse
	if err := c.getJSON(ctx, "/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
