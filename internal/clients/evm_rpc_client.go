package clients

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/nonyonah/hedwig/internal/utils"
)

// balanceOfSelector is the 4-byte selector for balanceOf(address).
var balanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31}

// EVMRPCClient reads balances and receipts from EVM chains through public
// RPC endpoints. Clients are dialed lazily per chain and cached.
type EVMRPCClient struct {
	registry *utils.ChainRegistry

	mu      sync.Mutex
	clients map[string]*ethclient.Client // chain label -> client
}

// NewEVMRPCClient creates an EVM RPC client over the chain registry.
func NewEVMRPCClient(registry *utils.ChainRegistry) *EVMRPCClient {
	return &EVMRPCClient{
		registry: registry,
		clients:  make(map[string]*ethclient.Client),
	}
}

func (c *EVMRPCClient) client(chain string) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[chain]; ok {
		return client, nil
	}
	endpoint, err := c.registry.RPCEndpoint(chain)
	if err != nil {
		return nil, err
	}
	client, err := ethclient.Dial(endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial %s rpc: %w", chain, err)
	}
	c.clients[chain] = client
	return client, nil
}

// NativeBalance returns the native asset balance in wei.
func (c *EVMRPCClient) NativeBalance(ctx context.Context, chain, address string) (*big.Int, error) {
	defer observeVendor("evm_rpc", "native_balance", time.Now())
	client, err := c.client(chain)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid EVM address: %s", address)
	}
	return client.BalanceAt(ctx, common.HexToAddress(address), nil)
}

// TokenBalance returns an ERC-20 balance in the token's smallest unit via an
// eth_call to balanceOf.
func (c *EVMRPCClient) TokenBalance(ctx context.Context, chain, contract, address string) (*big.Int, error) {
	defer observeVendor("evm_rpc", "token_balance", time.Now())
	client, err := c.client(chain)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(contract) || !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address for token balance query")
	}

	data := make([]byte, 0, 36)
	data = append(data, balanceOfSelector...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(address).Bytes(), 32)...)

	to := common.HexToAddress(contract)
	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf call: %w", err)
	}
	return new(big.Int).SetBytes(out), nil
}

// TransactionConfirmed reports whether a broadcast transaction has been
// mined, and whether it succeeded. mined=false means still pending.
func (c *EVMRPCClient) TransactionConfirmed(ctx context.Context, chain, txHash string) (mined bool, ok bool, err error) {
	defer observeVendor("evm_rpc", "transaction_receipt", time.Now())
	client, err := c.client(chain)
	if err != nil {
		return false, false, err
	}
	receipt, err := client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if err == ethereum.NotFound {
			return false, false, nil
		}
		return false, false, fmt.Errorf("transaction receipt: %w", err)
	}
	return true, receipt.Status == 1, nil
}

// SuggestGasPrice proxies the chain's gas price oracle.
func (c *EVMRPCClient) SuggestGasPrice(ctx context.Context, chain string) (*big.Int, error) {
	defer observeVendor("evm_rpc", "suggest_gas_price", time.Now())
	client, err := c.client(chain)
	if err != nil {
		return nil, err
	}
	return client.SuggestGasPrice(ctx)
}

// Close releases all dialed RPC connections.
func (c *EVMRPCClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, client := range c.clients {
		client.Close()
	}
	c.clients = make(map[string]*ethclient.Client)
}
