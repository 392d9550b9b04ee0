package chain

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

// jsonrpcRequest/response mirror the minimal envelope go-ethereum's
// rpc.Client speaks over HTTP.
type jsonrpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     json.RawMessage   `json:"id"`
}

type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result"`
}

// newFakeRPCServer serves eth_call with callResult (abi-encoded hex,
// no 0x prefix required) and eth_gasPrice with gasPriceHex.
func newFakeRPCServer(t *testing.T, callResult string, gasPriceHex string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonrpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var result interface{}
		switch req.Method {
		case "eth_call":
			result = "0x" + strings.TrimPrefix(callResult, "0x")
		case "eth_gasPrice":
			result = gasPriceHex
		case "eth_chainId":
			result = "0x1"
		default:
			t.Fatalf("unexpected rpc method %s", req.Method)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jsonrpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
	}))
}

func newTestEVMClient(t *testing.T, callResult, gasPriceHex string) (*EVMClient, *httptest.Server) {
	t.Helper()
	srv := newFakeRPCServer(t, callResult, gasPriceHex)
	c, err := NewEVMClient(srv.URL, nil, common.HexToAddress("0x1"))
	require.NoError(t, err)
	return c, srv
}

func TestDecimalsDecodesUint8(t *testing.T) {
	// uint8 32-byte-padded ABI encoding of 6.
	encoded := "0000000000000000000000000000000000000000000000000000000000000006"
	c, srv := newTestEVMClient(t, encoded, "0x3b9aca00")
	defer srv.Close()

	decimals, err := c.Decimals(context.Background(), common.HexToAddress("0xabc"))
	require.NoError(t, err)
	require.Equal(t, uint8(6), decimals)
}

func TestGasPriceParsesHexResult(t *testing.T) {
	c, srv := newTestEVMClient(t, "0000000000000000000000000000000000000000000000000000000000000006", "0x3b9aca00")
	defer srv.Close()

	price, err := c.GasPrice(context.Background())
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1000000000), price)
}

func TestFeedsReturnsZeroAddressWhenUnregistered(t *testing.T) {
	zero := strings.Repeat("0", 64)
	c, srv := newTestEVMClient(t, zero, "0x3b9aca00")
	defer srv.Close()

	addr, err := c.Feeds(context.Background(), [32]byte{})
	require.NoError(t, err)
	require.Equal(t, common.Address{}, addr)
}
