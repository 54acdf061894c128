package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveNetwork(t *testing.T) {
	t.Run("ETH resolves to ERC20 regardless of order", func(t *testing.T) {
		got1, ok1 := ResolveNetwork("ETH", []string{"ERC20", "BEP20"}, nil)
		got2, ok2 := ResolveNetwork("ETH", []string{"BEP20", "ERC20"}, nil)

		assert.True(t, ok1)
		assert.True(t, ok2)
		assert.Equal(t, "ERC20", got1)
		assert.Equal(t, got1, got2)
	})

	t.Run("repeated calls are stable", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			got, ok := ResolveNetwork("eth", []string{"BEP20", "TRC20", "ERC20"}, nil)
			assert.True(t, ok)
			assert.Equal(t, "ERC20", got)
		}
	})

	t.Run("falls back to chain name", func(t *testing.T) {
		got, ok := ResolveNetwork("ETH", []string{"ETH", "BSC"}, nil)
		assert.True(t, ok)
		assert.Equal(t, "ETH", got)
	})

	t.Run("unknown chain matches itself", func(t *testing.T) {
		got, ok := ResolveNetwork("XRP", []string{"XRP"}, nil)
		assert.True(t, ok)
		assert.Equal(t, "XRP", got)
	})

	t.Run("preserves exchange casing", func(t *testing.T) {
		got, ok := ResolveNetwork("BSC", []string{"bep20"}, nil)
		assert.True(t, ok)
		assert.Equal(t, "bep20", got)
	})

	t.Run("overrides take priority", func(t *testing.T) {
		overrides := map[string][]string{"ETH": {"ETHEREUM", "ERC20"}}
		got, ok := ResolveNetwork("ETH", []string{"ERC20", "Ethereum"}, overrides)
		assert.True(t, ok)
		assert.Equal(t, "Ethereum", got)
	})

	t.Run("not offered", func(t *testing.T) {
		_, ok := ResolveNetwork("ETH", []string{"TRC20"}, nil)
		assert.False(t, ok)
	})

	t.Run("empty chain", func(t *testing.T) {
		_, ok := ResolveNetwork(" ", []string{"ERC20"}, nil)
		assert.False(t, ok)
	})
}
