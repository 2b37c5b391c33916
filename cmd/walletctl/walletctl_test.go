package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"encwallet/internal/domain"
	"encwallet/internal/keys"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeygenPrintsLoadableKey(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"keygen", "--bits", "128"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	require.NoError(t, rootCmd.Execute())

	env := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		key, value, ok := strings.Cut(line, "=")
		require.True(t, ok, line)
		env[key] = value
	}
	require.Len(t, env, 4)

	full, err := keys.LoadFull(env["PAILLIER_N"], env["PAILLIER_G"], env["PAILLIER_LAMBDA"], env["PAILLIER_MU"])
	require.NoError(t, err)
	assert.NotNil(t, full.PublicKey())
}

func TestWriteHistory(t *testing.T) {
	next := 2
	page := domain.TransactionPage{
		Transactions: []domain.Transaction{
			{Hash: "0xaa", BlockNumber: 12, From: "0x01", To: "0x02", Status: domain.StatusConfirmed, Timestamp: uint64(time.Now().Add(-2 * time.Hour).Unix())},
			{Hash: "0xbb", From: "0x01", To: "0x03", Status: domain.StatusPending},
		},
		NextCursor: &next,
	}

	var out bytes.Buffer
	require.NoError(t, writeHistory(&out, page))
	text := out.String()
	assert.Contains(t, text, "HASH")
	assert.Contains(t, text, "2 hours ago")
	assert.Contains(t, text, "pending")
	assert.Contains(t, text, "more results: --page 2")
}

func TestRenderJSON(t *testing.T) {
	previous := flags.Output
	flags.Output = "json"
	t.Cleanup(func() { flags.Output = previous })

	var out bytes.Buffer
	require.NoError(t, render(&out, domain.DecryptedAmount{Raw: "-2500", Formatted: "-2.5"}, nil))
	assert.JSONEq(t, `{"raw":"-2500","formatted":"-2.5"}`, out.String())
}
