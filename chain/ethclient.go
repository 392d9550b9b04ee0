package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/ojo-network/rofl-price-oracle/signing"
)

func ethereumCallMsg(to common.Address, data []byte) ethereum.CallMsg {
	return ethereum.CallMsg{To: &to, Data: data}
}

// directoryABIJSON and aggregatorABIJSON are the narrow ABI fragments
// needed to encode/decode the on-chain contract surface consumed by
// this module (§6). Loading a project-wide ABI bundle or resolving
// contract addresses by deployment is out of scope; these fragments
// only cover the calls EVMClient makes.
const directoryABIJSON = `[
	{"type":"function","name":"feeds","stateMutability":"view",
	 "inputs":[{"name":"feedHash","type":"bytes32"}],
	 "outputs":[{"name":"aggregator","type":"address"}]},
	{"type":"function","name":"addFeed","stateMutability":"nonpayable",
	 "inputs":[{"name":"name","type":"string"},{"name":"aggregator","type":"address"},{"name":"enabled","type":"bool"}],
	 "outputs":[]}
]`

const aggregatorABIJSON = `[
	{"type":"function","name":"decimals","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"description","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"setDecimals","stateMutability":"nonpayable",
	 "inputs":[{"name":"decimals","type":"uint8"}],"outputs":[]},
	{"type":"function","name":"setDescription","stateMutability":"nonpayable",
	 "inputs":[{"name":"description","type":"string"}],"outputs":[]},
	{"type":"function","name":"latestRoundData","stateMutability":"view",
	 "inputs":[],
	 "outputs":[
		{"name":"roundId","type":"uint80"},
		{"name":"answer","type":"int256"},
		{"name":"startedAt","type":"uint256"},
		{"name":"updatedAt","type":"uint256"},
		{"name":"answeredInRound","type":"uint80"}
	 ]},
	{"type":"function","name":"submitObservation","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"roundId","type":"uint80"},
		{"name":"answer","type":"int256"},
		{"name":"startedAt","type":"uint256"},
		{"name":"updatedAt","type":"uint256"}
	 ],"outputs":[]}
]`

// defaultSubmitGasLimit bounds the gas limit attached to write calls
// routed through the signing daemon, since the daemon's sign-submit
// endpoint takes a caller-supplied limit rather than estimating one.
const defaultSubmitGasLimit = 300_000

// EVMClient implements Client against a live Sapphire RPC endpoint.
// Read calls (Feeds, Decimals, Description, LatestRoundData, GasPrice)
// go directly over JSON-RPC via ethclient. Write calls (AddFeed,
// SetDecimals, SetDescription, SubmitObservation) are ABI-encoded here
// and handed to the signing daemon client, since every transaction
// from inside the TEE is signed and submitted by rofl-appd rather than
// by a locally held private key.
type EVMClient struct {
	rpc       *ethclient.Client
	signer    *signing.Client
	directory common.Address

	directoryABI abi.ABI
	aggregateABI abi.ABI
}

// NewEVMClient dials rpcURL and wires signer for every write path.
// directory is the address of the feed directory contract (§6).
func NewEVMClient(rpcURL string, signer *signing.Client, directory common.Address) (*EVMClient, error) {
	rpc, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}

	directoryABI, err := abi.JSON(strings.NewReader(directoryABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse directory abi: %w", err)
	}
	aggregateABI, err := abi.JSON(strings.NewReader(aggregatorABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse aggregator abi: %w", err)
	}

	return &EVMClient{
		rpc:          rpc,
		signer:       signer,
		directory:    directory,
		directoryABI: directoryABI,
		aggregateABI: aggregateABI,
	}, nil
}

func (c *EVMClient) callView(ctx context.Context, contract common.Address, contractABI abi.ABI, method string, out interface{}, args ...interface{}) error {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}

	msg := ethereumCallMsg(contract, data)
	result, err := c.rpc.CallContract(ctx, msg, nil)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}

	if out == nil {
		return nil
	}
	return contractABI.UnpackIntoInterface(out, method, result)
}

// Feeds resolves a feed hash to its aggregator contract address
// through the directory contract.
func (c *EVMClient) Feeds(ctx context.Context, feedHash [32]byte) (common.Address, error) {
	var addr common.Address
	if err := c.callView(ctx, c.directory, c.directoryABI, "feeds", &addr, feedHash); err != nil {
		return common.Address{}, err
	}
	return addr, nil
}

// AddFeed registers a new feed in the directory contract. Routed
// through the signing daemon since it mutates chain state.
func (c *EVMClient) AddFeed(ctx context.Context, name string, aggregator common.Address, enabled bool) (common.Hash, error) {
	data, err := c.directoryABI.Pack("addFeed", name, aggregator, enabled)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack addFeed: %w", err)
	}
	return c.submit(ctx, c.directory, data)
}

func (c *EVMClient) Decimals(ctx context.Context, aggregator common.Address) (uint8, error) {
	var decimals uint8
	err := c.callView(ctx, aggregator, c.aggregateABI, "decimals", &decimals)
	return decimals, err
}

func (c *EVMClient) Description(ctx context.Context, aggregator common.Address) (string, error) {
	var description string
	err := c.callView(ctx, aggregator, c.aggregateABI, "description", &description)
	return description, err
}

func (c *EVMClient) SetDecimals(ctx context.Context, aggregator common.Address, decimals uint8) (common.Hash, error) {
	data, err := c.aggregateABI.Pack("setDecimals", decimals)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack setDecimals: %w", err)
	}
	return c.submit(ctx, aggregator, data)
}

func (c *EVMClient) SetDescription(ctx context.Context, aggregator common.Address, description string) (common.Hash, error) {
	data, err := c.aggregateABI.Pack("setDescription", description)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack setDescription: %w", err)
	}
	return c.submit(ctx, aggregator, data)
}

func (c *EVMClient) LatestRoundData(ctx context.Context, aggregator common.Address) (RoundData, error) {
	var out struct {
		RoundId         *big.Int
		Answer          *big.Int
		StartedAt       *big.Int
		UpdatedAt       *big.Int
		AnsweredInRound *big.Int
	}
	if err := c.callView(ctx, aggregator, c.aggregateABI, "latestRoundData", &out); err != nil {
		return RoundData{}, err
	}
	return RoundData{
		RoundID:   out.RoundId,
		Answer:    out.Answer,
		StartedAt: out.StartedAt.Int64(),
		UpdatedAt: out.UpdatedAt.Int64(),
	}, nil
}

// SubmitObservation's gasPrice argument is accepted for interface
// parity with the legacy reference but is not forwarded: the ROFL
// sign-submit payload (signing.TxData) has no gas-price field, since
// gas pricing inside the TEE is the daemon's responsibility.
func (c *EVMClient) SubmitObservation(ctx context.Context, aggregator common.Address, roundID, answer *big.Int, startedAt, updatedAt int64, gasPrice *big.Int) (common.Hash, error) {
	data, err := c.aggregateABI.Pack("submitObservation", roundID, answer, big.NewInt(startedAt), big.NewInt(updatedAt))
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack submitObservation: %w", err)
	}
	return c.submit(ctx, aggregator, data)
}

func (c *EVMClient) GasPrice(ctx context.Context) (*big.Int, error) {
	return c.rpc.SuggestGasPrice(ctx)
}

// submit hands an ABI-encoded call to the signing daemon, which signs
// and broadcasts it from inside the TEE.
func (c *EVMClient) submit(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	resp, err := c.signer.SignAndSubmit(ctx, signing.TxData{
		GasLimit: defaultSubmitGasLimit,
		To:       common.Bytes2Hex(to.Bytes()),
		Value:    "0",
		Data:     common.Bytes2Hex(data),
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("submit tx: %w", err)
	}

	hash, _ := resp["tx_hash"].(string)
	return common.HexToHash(hash), nil
}
