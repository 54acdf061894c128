package exchange

import (
	"strings"
)

// chainAliases lists, in priority order, the network ids a chain may be
// published under. The first one the exchange offers wins.
var chainAliases = map[string][]string{
	"ETH":      {"ERC20", "ETH"},
	"BSC":      {"BEP20", "BSC", "BNB"},
	"TRX":      {"TRC20", "TRX", "TRON"},
	"TRON":     {"TRC20", "TRX", "TRON"},
	"MATIC":    {"POLYGON", "MATIC"},
	"POLYGON":  {"POLYGON", "MATIC"},
	"SOL":      {"SOL", "SOLANA", "SPL"},
	"ARBITRUM": {"ARBITRUM", "ARB", "ARBONE"},
	"OPTIMISM": {"OPTIMISM", "OP"},
	"AVAX":     {"AVAXC", "AVAX", "AVAX-C"},
	"BTC":      {"BTC", "BITCOIN"},
}

// ResolveNetwork maps a chain onto one of the networks an exchange offers.
// The result depends only on the set of available networks, never on their order.
func ResolveNetwork(chain string, available []string, overrides map[string][]string) (string, bool) {
	chain = strings.ToUpper(strings.TrimSpace(chain))
	if chain == "" {
		return "", false
	}

	offered := make(map[string]string, len(available))
	for _, n := range available {
		offered[strings.ToUpper(n)] = n
	}

	candidates := overrides[chain]
	if len(candidates) == 0 {
		candidates = chainAliases[chain]
	}
	if len(candidates) == 0 {
		candidates = []string{chain}
	}

	for _, candidate := range candidates {
		if n, ok := offered[strings.ToUpper(candidate)]; ok {
			return n, true
		}
	}
	return "", false
}
