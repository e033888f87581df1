package main

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookvault/types"
	"hookvault/utils/merkle"
)

func TestLoadReportFindsProof(t *testing.T) {
	a, err := types.NewKeypair()
	require.NoError(t, err)
	b, err := types.NewKeypair()
	require.NoError(t, err)
	tree, err := merkle.NewTree([]types.Pubkey{a.Pubkey(), b.Pubkey()})
	require.NoError(t, err)
	proof, err := tree.Proof(1)
	require.NoError(t, err)

	doc := `{"root":"` + tree.Root().String() + `","leaves":2,"members":[` +
		`{"member":"` + b.Pubkey().String() + `","index":1,"proof":["` + proof[0].String() + `"]}]}`
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	rep, err := loadReport(path)
	require.NoError(t, err)
	assert.Equal(t, tree.Root(), rep.Root)
	got, err := rep.proofFor(b.Pubkey())
	require.NoError(t, err)
	assert.True(t, merkle.Verify(merkle.HashLeaf(b.Pubkey()), got, rep.Root))

	_, err = rep.proofFor(a.Pubkey())
	assert.Error(t, err)
}

func TestParseKey(t *testing.T) {
	kp, err := types.NewKeypair()
	require.NoError(t, err)
	got, err := parseKey(hex.EncodeToString(kp.Secret()))
	require.NoError(t, err)
	assert.Equal(t, kp.Pubkey(), got.Pubkey())

	_, err = parseKey("")
	assert.ErrorContains(t, err, "missing -key")
}
