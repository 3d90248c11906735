package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolgame/box"
	"github.com/tolelom/tolgame/core"
)

func TestPrompt(t *testing.T) {
	tx := &core.UnsignedTx{
		Action:  core.ActionDrainStake,
		Inputs:  []*box.Box{{ID: "in0", Value: 10}},
		Outputs: []*box.Box{{Value: 9, Proposition: []byte{1, 2}}},
		Fee:     1,
	}
	var out bytes.Buffer
	require.NoError(t, prompt(strings.NewReader("y\n"), &out)(context.Background(), tx))
	require.Contains(t, out.String(), "drain_stake")
	require.Contains(t, out.String(), "Fee: 1")

	err := prompt(strings.NewReader("\n"), &out)(context.Background(), tx)
	require.ErrorIs(t, err, core.ErrUserCancelled)
}

func TestCommandTree(t *testing.T) {
	want := []string{"node", "genkey", "gencerts", "height", "balance", "box", "show-game", "game"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		require.Equal(t, name, cmd.Name())
	}
	sub, _, err := rootCmd.Find([]string{"game", "reclaim-abandoned"})
	require.NoError(t, err)
	require.Equal(t, "reclaim-abandoned", sub.Name())
}

func TestShort(t *testing.T) {
	require.Equal(t, "abc", short("abc"))
	require.Equal(t, "0123456789…23456789", short("0123456789abcdef0123456789"))
}
