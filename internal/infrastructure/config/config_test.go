package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseChainNetworks(t *testing.T) {
	got := ParseChainNetworks("eth=mainnet, BSC=mainnet,broken,=x,TRON=")
	assert.Equal(t, map[string]string{"ETH": "mainnet", "BSC": "mainnet"}, got)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Storage: StorageConfig{Driver: "memory"},
		Ledger:  LedgerConfig{Stablecoin: "USDT"},
	}
	assert.NoError(t, validate(cfg))

	cfg.Ledger.EcosystemEnabled = true
	assert.Error(t, validate(cfg))
	cfg.Engine.BaseURL = "http://engine:8080"
	assert.NoError(t, validate(cfg))

	cfg.Events.Enabled = true
	assert.Error(t, validate(cfg))

	cfg.Events.Enabled = false
	cfg.Storage.Driver = "sqlite"
	assert.Error(t, validate(cfg))
}
