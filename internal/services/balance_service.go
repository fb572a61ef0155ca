package services

import (
	"context"
	"fmt"
	"math/big"

	"github.com/nonyonah/hedwig/internal/models"
	"github.com/nonyonah/hedwig/internal/utils"
)

// evmBalanceReader is the subset of the EVM RPC client the service uses.
type evmBalanceReader interface {
	NativeBalance(ctx context.Context, chain, address string) (*big.Int, error)
	TokenBalance(ctx context.Context, chain, contract, address string) (*big.Int, error)
}

// solanaBalanceReader is the subset of the Solana RPC client the service uses.
type solanaBalanceReader interface {
	Balance(ctx context.Context, address string) (uint64, error)
}

// AssetBalance is one asset's balance on one chain.
type AssetBalance struct {
	Chain   string `json:"chain"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
	Address string `json:"address"`
}

// BalanceService reads wallet balances straight from chain RPC endpoints.
type BalanceService struct {
	evm      evmBalanceReader
	sol      solanaBalanceReader
	wallets  *WalletService
	registry *utils.ChainRegistry
}

// NewBalanceService creates a BalanceService.
func NewBalanceService(evm evmBalanceReader, sol solanaBalanceReader, wallets *WalletService, registry *utils.ChainRegistry) *BalanceService {
	return &BalanceService{evm: evm, sol: sol, wallets: wallets, registry: registry}
}

// WalletBalances returns the balances of every asset the registry knows on
// the given wallet's chain. Individual asset failures degrade to skipping
// that asset rather than failing the whole query.
func (s *BalanceService) WalletBalances(ctx context.Context, wallet *models.Wallet) ([]AssetBalance, error) {
	info, ok := s.registry.Get(string(wallet.Chain))
	if !ok {
		return nil, fmt.Errorf("unsupported chain: %s", wallet.Chain)
	}

	var out []AssetBalance
	switch info.Kind {
	case utils.ChainKindEVM:
		for _, symbol := range []string{info.NativeSymbol, "USDC", "USDT"} {
			token, ok := s.registry.Token(string(wallet.Chain), symbol)
			if !ok {
				continue
			}
			var raw *big.Int
			var err error
			if token.Contract == "" {
				raw, err = s.evm.NativeBalance(ctx, string(wallet.Chain), wallet.Address)
			} else {
				raw, err = s.evm.TokenBalance(ctx, string(wallet.Chain), token.Contract, wallet.Address)
			}
			if err != nil {
				continue
			}
			out = append(out, AssetBalance{
				Chain:   string(wallet.Chain),
				Asset:   token.Symbol,
				Amount:  utils.FromMinorUnits(raw, token.Decimals),
				Address: wallet.Address,
			})
		}
	case utils.ChainKindSolana:
		lamports, err := s.sol.Balance(ctx, wallet.Address)
		if err != nil {
			return nil, fmt.Errorf("solana balance: %w", err)
		}
		token, _ := s.registry.Token("solana", "SOL")
		out = append(out, AssetBalance{
			Chain:   string(wallet.Chain),
			Asset:   "SOL",
			Amount:  utils.FromMinorUnits(new(big.Int).SetUint64(lamports), token.Decimals),
			Address: wallet.Address,
		})
	}
	return out, nil
}

// UserBalances aggregates balances across all of the user's wallets.
func (s *BalanceService) UserBalances(ctx context.Context, userID string) ([]AssetBalance, error) {
	wallets, err := s.wallets.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	var out []AssetBalance
	for _, wallet := range wallets {
		balances, err := s.WalletBalances(ctx, wallet)
		if err != nil {
			continue
		}
		out = append(out, balances...)
	}
	return out, nil
}
