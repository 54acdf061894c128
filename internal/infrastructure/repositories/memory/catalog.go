package memory

import (
	"context"
	"sync"

	"github.com/rail-service/ledger_service/internal/domain/entities"
	apperrors "github.com/rail-service/ledger_service/internal/domain/errors"
)

type currencyKey struct {
	code       string
	walletType entities.WalletType
}

// Catalog is an in-memory currency catalog
type Catalog struct {
	mu         sync.RWMutex
	currencies map[currencyKey]*entities.Currency
}

// NewCatalog creates a catalog holding the given currencies
func NewCatalog(currencies ...*entities.Currency) *Catalog {
	c := &Catalog{currencies: make(map[currencyKey]*entities.Currency)}
	for _, cur := range currencies {
		c.Put(cur)
	}
	return c
}

// Put adds or replaces a currency
func (c *Catalog) Put(cur *entities.Currency) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *cur
	cp.Code = entities.NormalizeCurrency(cur.Code)
	c.currencies[currencyKey{cp.Code, cp.WalletType}] = &cp
}

func (c *Catalog) GetCurrency(ctx context.Context, code string, walletType entities.WalletType) (*entities.Currency, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cur, ok := c.currencies[currencyKey{entities.NormalizeCurrency(code), walletType}]
	if !ok {
		return nil, apperrors.NotFoundError("CURRENCY")
	}
	cp := *cur
	return &cp, nil
}

// Settings is an in-memory settings table
type Settings struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewSettings creates a settings table with initial values
func NewSettings(values map[string]string) *Settings {
	s := &Settings{values: make(map[string]string, len(values))}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// Set writes one setting
func (s *Settings) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *Settings) GetAll(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}
