// Package signing implements the client for the ROFL signing daemon: a
// Unix-domain-socket HTTP API that owns key material and transaction
// signing inside the trusted execution environment, opaque to the
// rest of this module.
package signing

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cosmos/btcutil/bech32"
	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog/log"
)

const (
	defaultSocketPath = "/run/rofl-appd.sock"

	retryBaseDelay = 1 * time.Second
	retryMaxDelay  = 5 * time.Second
	retryAttempts  = 30
)

// TxData is the inner "eth" transaction payload handed to sign-submit.
type TxData struct {
	GasLimit uint64 `json:"gas_limit"`
	To       string `json:"to"`
	Value    string `json:"value"`
	Data     string `json:"data"`
}

type txEnvelope struct {
	Kind string `json:"kind"`
	Data TxData `json:"data"`
}

type signSubmitRequest struct {
	Tx        txEnvelope `json:"tx"`
	Encrypted bool       `json:"encrypted"`
}

type signSubmitResponse struct {
	Data string `json:"data"`
}

type generateKeyRequest struct {
	KeyID string `json:"key_id"`
	Kind  string `json:"kind"`
}

type generateKeyResponse struct {
	Key string `json:"key"`
}

// Client talks to the ROFL signing daemon over a Unix-domain HTTP
// socket; it has no TCP transport. Failed requests are retried with the
// health tracker's exponential backoff formula, here with base 1s and
// cap 5s.
type Client struct {
	http *http.Client
	base string
}

// NewClient builds a Client dialing socketPath. An empty socketPath
// falls back to the daemon's conventional default.
func NewClient(socketPath string) *Client {
	if socketPath == "" {
		socketPath = defaultSocketPath
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}

	return &Client{
		http: &http.Client{Transport: transport, Timeout: 30 * time.Second},
		base: "http://rofl-appd",
	}
}

// AppID fetches this app's bech32-encoded 21-byte application
// identifier and returns its decoded raw bytes.
func (c *Client) AppID(ctx context.Context) ([]byte, error) {
	body, err := c.doWithRetry(ctx, http.MethodGet, "/rofl/v1/app/id", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch app id: %w", err)
	}

	hrp, data, err := bech32.Decode(string(bytes.TrimSpace(body)))
	if err != nil {
		return nil, fmt.Errorf("decode bech32 app id: %w", err)
	}
	_ = hrp

	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("convert app id bits: %w", err)
	}
	return raw, nil
}

// GenerateKey asks the daemon to generate (or return an existing)
// secp256k1 key under keyID.
func (c *Client) GenerateKey(ctx context.Context, keyID string) (string, error) {
	reqBody, err := json.Marshal(generateKeyRequest{KeyID: keyID, Kind: "secp256k1"})
	if err != nil {
		return "", err
	}

	body, err := c.doWithRetry(ctx, http.MethodPost, "/rofl/v1/keys/generate", reqBody)
	if err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}

	var resp generateKeyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode generate key response: %w", err)
	}
	return resp.Key, nil
}

// SignAndSubmit signs and submits an Ethereum-kind transaction,
// returning the CBOR-decoded response payload.
func (c *Client) SignAndSubmit(ctx context.Context, tx TxData) (map[string]interface{}, error) {
	reqBody, err := json.Marshal(signSubmitRequest{
		Tx:        txEnvelope{Kind: "eth", Data: tx},
		Encrypted: false,
	})
	if err != nil {
		return nil, err
	}

	body, err := c.doWithRetry(ctx, http.MethodPost, "/rofl/v1/tx/sign-submit", reqBody)
	if err != nil {
		return nil, fmt.Errorf("sign-submit: %w", err)
	}

	var resp signSubmitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode sign-submit response: %w", err)
	}

	raw, err := hex.DecodeString(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("decode sign-submit hex payload: %w", err)
	}

	var decoded map[string]interface{}
	if err := cbor.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode sign-submit cbor payload: %w", err)
	}
	return decoded, nil
}

// doWithRetry performs an HTTP request against the daemon, retrying
// with exponential backoff (base 1s, cap 5s) up to retryAttempts
// times. This mirrors the backoff formula oracle/health uses for
// source adapters rather than inventing a second algorithm.
func (c *Client) doWithRetry(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			if delay > retryMaxDelay || delay <= 0 {
				delay = retryMaxDelay
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		respBody, err := c.do(ctx, method, path, body)
		if err == nil {
			return respBody, nil
		}
		lastErr = err
		log.Warn().Str("path", path).Int("attempt", attempt+1).Err(err).Msg("signing daemon request failed, retrying")
	}

	return nil, fmt.Errorf("exhausted %d attempts: %w", retryAttempts, lastErr)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
