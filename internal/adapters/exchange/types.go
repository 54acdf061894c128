package exchange

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Ticker is the latest trade summary for a symbol such as BTC/USDT
type Ticker struct {
	Symbol    string          `json:"symbol"`
	Last      decimal.Decimal `json:"last"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// NetworkInfo describes one withdrawal network of a currency on the exchange
type NetworkInfo struct {
	ID       string           `json:"id"`
	Network  string           `json:"network"`
	Active   bool             `json:"active"`
	Deposit  bool             `json:"deposit"`
	Withdraw bool             `json:"withdraw"`
	Fee      *decimal.Decimal `json:"fee,omitempty"`
}

// CurrencyInfo is the exchange's view of one currency
type CurrencyInfo struct {
	Code     string                 `json:"code"`
	Active   bool                   `json:"active"`
	Networks map[string]NetworkInfo `json:"networks"`
}

// NetworkIDs returns the network identifiers the exchange reports for this currency
func (c CurrencyInfo) NetworkIDs() []string {
	ids := make([]string, 0, len(c.Networks))
	for key, n := range c.Networks {
		switch {
		case n.Network != "":
			ids = append(ids, n.Network)
		case n.ID != "":
			ids = append(ids, n.ID)
		default:
			ids = append(ids, key)
		}
	}
	return ids
}

// DepositAddress is a provider deposit address. Some exchanges answer with
// "Address" instead of "address"; UnmarshalJSON accepts both.
type DepositAddress struct {
	Currency string  `json:"currency"`
	Address  string  `json:"address"`
	Tag      *string `json:"tag,omitempty"`
	Network  string  `json:"network,omitempty"`
}

func (d *DepositAddress) UnmarshalJSON(data []byte) error {
	var raw struct {
		Currency     string  `json:"currency"`
		Address      string  `json:"address"`
		AddressTitle string  `json:"Address"`
		Tag          *string `json:"tag"`
		Memo         *string `json:"memo"`
		Network      string  `json:"network"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Currency = raw.Currency
	d.Network = raw.Network
	d.Address = strings.TrimSpace(raw.Address)
	if d.Address == "" {
		d.Address = strings.TrimSpace(raw.AddressTitle)
	}
	d.Tag = raw.Tag
	if d.Tag == nil || *d.Tag == "" {
		d.Tag = raw.Memo
	}
	return nil
}

// WithdrawParams is a withdrawal request in exchange terms
type WithdrawParams struct {
	Code    string          `json:"code"`
	Amount  decimal.Decimal `json:"amount"`
	Address string          `json:"address"`
	Tag     string          `json:"tag,omitempty"`
	Network string          `json:"network,omitempty"`
}

// WithdrawalRecord is a withdrawal as reported by the exchange
type WithdrawalRecord struct {
	ID        string           `json:"id"`
	Status    string           `json:"status"`
	Fee       *decimal.Decimal `json:"fee,omitempty"`
	Amount    decimal.Decimal  `json:"amount"`
	Timestamp int64            `json:"timestamp,omitempty"`
}

// TransferRecord is an internal account-to-account move on the exchange
type TransferRecord struct {
	ID string `json:"id"`
}

// Balance holds free balances per currency code
type Balance struct {
	Free  map[string]decimal.Decimal `json:"free"`
	Total map[string]decimal.Decimal `json:"total,omitempty"`
}

// FreeFor returns the free balance for code, zero when absent
func (b *Balance) FreeFor(code string) decimal.Decimal {
	if b == nil || b.Free == nil {
		return decimal.Zero
	}
	return b.Free[code]
}
