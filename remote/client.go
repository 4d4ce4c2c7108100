// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ava-labs/simnet/clarity"
)

const (
	apiKeyHeader   = "x-api-key"
	defaultTimeout = 30 * time.Second
)

// Client talks to a Stacks node and its API over HTTP.
type Client struct {
	base    string
	apiKey  string
	http    *http.Client
	timeout time.Duration
}

func NewClient(apiURL, apiKey string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		base:    strings.TrimSuffix(apiURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{},
		timeout: timeout,
	}
}

// ContractInfo is the deployment metadata of a contract.
type ContractInfo struct {
	ContractID     string          `json:"contract_id"`
	Source         string          `json:"source"`
	Height         uint32          `json:"block_height"`
	ClarityVersion clarity.Version `json:"clarity_version"`
}

type sourceResponse struct {
	Source        string `json:"source"`
	PublishHeight uint32 `json:"publish_height"`
}

type contractResponse struct {
	BlockHeight    uint32 `json:"block_height"`
	ClarityVersion *int   `json:"clarity_version"`
}

type blockResponse struct {
	Height         uint32 `json:"height"`
	IndexBlockHash string `json:"index_block_hash"`
}

type dataResponse struct {
	Data string `json:"data"`
}

// Contract fetches the source and deployment height of id.
func (c *Client) Contract(ctx context.Context, id clarity.Principal) (*ContractInfo, error) {
	var src sourceResponse
	path := fmt.Sprintf("/v2/contracts/source/%s/%s?proof=0", id.Address(), id.Name)
	if err := c.do(ctx, http.MethodGet, path, nil, &src); err != nil {
		return nil, err
	}
	info := &ContractInfo{ContractID: id.ID(), Source: src.Source, Height: src.PublishHeight, ClarityVersion: clarity.Clarity1}

	var meta contractResponse
	if err := c.do(ctx, http.MethodGet, "/extended/v1/contract/"+id.ID(), nil, &meta); err != nil {
		return nil, err
	}
	if meta.BlockHeight != 0 {
		info.Height = meta.BlockHeight
	}
	if meta.ClarityVersion != nil {
		info.ClarityVersion = clarity.Version(*meta.ClarityVersion)
	}
	return info, nil
}

// IndexBlockHash resolves a block height to the tip used by state queries.
func (c *Client) IndexBlockHash(ctx context.Context, height uint32) (string, error) {
	var b blockResponse
	if err := c.do(ctx, http.MethodGet, "/extended/v2/blocks/"+strconv.FormatUint(uint64(height), 10), nil, &b); err != nil {
		return "", err
	}
	return strings.TrimPrefix(b.IndexBlockHash, "0x"), nil
}

// DataVar returns the hex encoded value of a data-var at tip.
func (c *Client) DataVar(ctx context.Context, id clarity.Principal, name, tip string) (string, error) {
	var d dataResponse
	path := fmt.Sprintf("/v2/data_var/%s/%s/%s?%s", id.Address(), id.Name, name, query(tip))
	if err := c.do(ctx, http.MethodGet, path, nil, &d); err != nil {
		return "", err
	}
	return d.Data, nil
}

// MapEntry returns the hex encoded optional stored under key at tip.
func (c *Client) MapEntry(ctx context.Context, id clarity.Principal, name, keyHex, tip string) (string, error) {
	body, err := json.Marshal(keyHex)
	if err != nil {
		return "", err
	}
	var d dataResponse
	path := fmt.Sprintf("/v2/map_entry/%s/%s/%s?%s", id.Address(), id.Name, name, query(tip))
	if err := c.do(ctx, http.MethodPost, path, body, &d); err != nil {
		return "", err
	}
	return d.Data, nil
}

func query(tip string) string {
	q := url.Values{"proof": {"0"}}
	if tip != "" {
		q.Set("tip", tip)
	}
	return q.Encode()
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrFetch, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s: status %d: %s", ErrFetch, method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrFetch, path, err)
	}
	return nil
}
