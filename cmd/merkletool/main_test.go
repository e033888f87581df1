package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookvault/types"
	"hookvault/utils/merkle"
)

func newMembers(t *testing.T, n int) []types.Pubkey {
	out := make([]types.Pubkey, n)
	for i := range out {
		kp, err := types.NewKeypair()
		require.NoError(t, err)
		out[i] = kp.Pubkey()
	}
	return out
}

func TestReportProofsVerifyForOddCount(t *testing.T) {
	members := newMembers(t, 5)
	rep, err := buildReport(members)
	require.NoError(t, err)
	assert.Equal(t, 8, rep.Leaves)
	require.Len(t, rep.Members, 5)
	for _, m := range rep.Members {
		assert.Len(t, m.Proof, 3)
		assert.True(t, merkle.Verify(m.Leaf, m.Proof, rep.Root), "member %d", m.Index)
	}
}

func TestReadMembers(t *testing.T) {
	members := newMembers(t, 2)
	input := "# whitelist\n" + members[0].String() + "\n\n  " + members[1].String() + "  \n"
	got, err := readMembers(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, members, got)

	_, err = readMembers(strings.NewReader(members[0].String() + "\n" + members[0].String()))
	assert.ErrorContains(t, err, "duplicate")

	_, err = readMembers(strings.NewReader("0OIl\n"))
	assert.ErrorContains(t, err, "line 1")
}
