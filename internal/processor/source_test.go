package processor

import (
	"testing"
	"time"

	"github.com/goran-ethernal/ChainHound/internal/common"
	"github.com/goran-ethernal/ChainHound/internal/types"
	"github.com/goran-ethernal/ChainHound/pkg/config"
	"github.com/goran-ethernal/ChainHound/pkg/handler"
	"github.com/stretchr/testify/require"
)

func TestSource_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Source)
		wantErr string
	}{
		{name: "valid", mutate: func(*Source) {}},
		{name: "missing name", mutate: func(s *Source) { s.Name = "" }, wantErr: "source name is required"},
		{name: "missing network", mutate: func(s *Source) { s.Network = "" }, wantErr: "network is required"},
		{name: "zero step", mutate: func(s *Source) { s.Step = 0 }, wantErr: "step must be greater than zero"},
		{name: "unknown mode", mutate: func(s *Source) { s.Mode = "eventually" }, wantErr: "invalid execution mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := eventSource(handler.ModeSerial, 0, 10)
			tt.mutate(&src)

			err := src.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSource_ID(t *testing.T) {
	static := eventSource(handler.ModeSerial, 0, 10)
	require.Equal(t, "usdc", static.ID())

	first := eventSource(handler.ModeSerial, 0, 10)
	first.Name, first.Template = "pair", true
	second := first
	second.Address = otherAddress

	require.Equal(t, "pair@"+tokenAddress.Hex(), first.ID())
	require.NotEqual(t, first.ID(), second.ID())
	require.Equal(t, []any{"source", first.ID(), "network", "mainnet", "address", tokenAddress.Hex()}, first.LogFields())

	ticks := Source{Name: "ticks", Kind: KindBlock, Network: "mainnet"}
	require.Equal(t, []any{"source", "ticks", "network", "mainnet"}, ticks.LogFields())
}

func TestKind_String(t *testing.T) {
	require.Equal(t, "event", KindEvent.String())
	require.Equal(t, "block", KindBlock.String())
	require.Equal(t, "kind(7)", Kind(7).String())
}

func TestConfigFrom(t *testing.T) {
	indexer := config.IndexerConfig{
		PollInterval: common.NewDuration(2 * time.Second),
		HeadTTL:      common.NewDuration(3 * time.Second),
	}

	cfg, err := ConfigFrom(indexer, config.NetworkConfig{Finality: "safe"})
	require.NoError(t, err)
	require.Equal(t, Config{
		PollInterval: 2 * time.Second,
		HeadTTL:      3 * time.Second,
		Finality:     types.FinalitySafe,
	}, cfg)

	_, err = ConfigFrom(indexer, config.NetworkConfig{Finality: "pending"})
	require.Error(t, err)
}
