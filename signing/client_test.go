package signing

import (
	"context"
	"encoding/hex"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/cosmos/btcutil/bech32"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"
)

// newUnixTestServer starts an httptest-style server listening on a
// Unix socket under a temp dir, and returns a Client dialing it.
func newUnixTestServer(t *testing.T, handler http.Handler) (*Client, func()) {
	t.Helper()

	dir := t.TempDir()
	socketPath := filepath.Join(dir, "rofl-appd.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	server := &http.Server{Handler: handler}
	go server.Serve(listener)

	client := NewClient(socketPath)
	cleanup := func() {
		server.Close()
		os.Remove(socketPath)
	}
	return client, cleanup
}

func TestAppIDDecodesBech32(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	converted, err := bech32.ConvertBits(raw, 8, 5, true)
	require.NoError(t, err)
	encoded, err := bech32.Encode("oasis1", converted)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/rofl/v1/app/id", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(encoded))
	})

	client, cleanup := newUnixTestServer(t, mux)
	defer cleanup()

	appID, err := client.AppID(context.Background())
	require.NoError(t, err)
	require.Equal(t, raw, appID)
}

func TestGenerateKeyReturnsKeyField(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rofl/v1/keys/generate", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"key": "deadbeef"}`))
	})

	client, cleanup := newUnixTestServer(t, mux)
	defer cleanup()

	key, err := client.GenerateKey(context.Background(), "oracle-key")
	require.NoError(t, err)
	require.Equal(t, "deadbeef", key)
}

func TestSignAndSubmitDecodesCBORPayload(t *testing.T) {
	payload := map[string]interface{}{"tx_hash": "0xabc123"}
	cborBytes, err := cbor.Marshal(payload)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/rofl/v1/tx/sign-submit", func(w http.ResponseWriter, r *http.Request) {
		body := `{"data":"` + hex.EncodeToString(cborBytes) + `"}`
		w.Write([]byte(body))
	})

	client, cleanup := newUnixTestServer(t, mux)
	defer cleanup()

	result, err := client.SignAndSubmit(context.Background(), TxData{
		GasLimit: 21000,
		To:       "abc",
		Value:    "0",
		Data:     "",
	})
	require.NoError(t, err)
	require.Equal(t, "0xabc123", result["tx_hash"])
}

func TestDoWithRetryGivesUpWhenContextCanceled(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rofl/v1/app/id", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	client, cleanup := newUnixTestServer(t, mux)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.AppID(ctx)
	require.Error(t, err)
}
