package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookvault/types"
)

var (
	progA = types.ProgramID("prog-a")
	progB = types.ProgramID("prog-b")
	payer = types.ProgramID("payer")
	auth  = types.ProgramID("authority")
	cfg   = types.ProgramID("config")
	mint  = types.ProgramID("mint")
)

func sampleBatch() []types.Instruction {
	return []types.Instruction{
		{
			ProgramID: progA,
			Accounts: []types.AccountMeta{
				types.ReadOnly(mint),
				types.Writable(cfg),
				types.ReadOnlySigner(auth),
			},
			Data: []byte{1, 2, 3},
		},
		{
			ProgramID: progB,
			Accounts: []types.AccountMeta{
				types.WritableSigner(payer),
				types.ReadOnly(cfg),
				types.Writable(mint), // 合并后 mint 变为可写
			},
			Data: []byte{9},
		},
	}
}

func TestCompileOrdersByPriorityThenFirstSeen(t *testing.T) {
	ct, remaining, err := Compile(sampleBatch(), nil)
	require.NoError(t, err)

	assert.Equal(t, []types.Pubkey{payer, auth, mint, cfg, progA, progB}, ct.Accounts)
	assert.Equal(t, uint8(1), ct.NumRwSigners)
	assert.Equal(t, uint8(1), ct.NumRoSigners)
	assert.Equal(t, uint8(2), ct.NumRw)

	require.Len(t, ct.Instructions, 2)
	assert.Equal(t, CompiledInstruction{ProgramIDIndex: 4, Accounts: []uint8{2, 3, 1}, Data: []byte{1, 2, 3}}, ct.Instructions[0])
	assert.Equal(t, CompiledInstruction{ProgramIDIndex: 5, Accounts: []uint8{0, 3, 2}, Data: []byte{9}}, ct.Instructions[1])

	want := []types.AccountMeta{
		types.Writable(payer),
		types.ReadOnly(auth),
		types.Writable(mint),
		types.Writable(cfg),
		types.ReadOnly(progA),
		types.ReadOnly(progB),
	}
	assert.Equal(t, want, remaining)
}

func TestCompileIsDeterministic(t *testing.T) {
	seeds := [][][]byte{{[]byte("queue_authority"), {254}}}
	a, _, err := Compile(sampleBatch(), seeds)
	require.NoError(t, err)
	b, _, err := Compile(sampleBatch(), seeds)
	require.NoError(t, err)
	assert.Equal(t, a.Marshal(), b.Marshal())

	for i := 0; i < 20; i++ {
		c, _, err := Compile(sampleBatch(), seeds)
		require.NoError(t, err)
		require.Equal(t, a.Marshal(), c.Marshal())
	}
}

func TestDecompileRestoresMergedPrivileges(t *testing.T) {
	ct, _, err := Compile(sampleBatch(), nil)
	require.NoError(t, err)

	ixs, err := ct.Decompile()
	require.NoError(t, err)
	require.Len(t, ixs, 2)
	assert.Equal(t, progA, ixs[0].ProgramID)
	assert.Equal(t, []types.AccountMeta{
		types.Writable(mint),
		types.Writable(cfg),
		types.ReadOnlySigner(auth),
	}, ixs[0].Accounts)
	assert.Equal(t, []byte{9}, ixs[1].Data)
	assert.Equal(t, types.WritableSigner(payer), ixs[1].Accounts[0])
}

func TestWireRoundTrip(t *testing.T) {
	seeds := [][][]byte{{[]byte("custom"), []byte("x")}}
	ct, _, err := Compile(sampleBatch(), seeds)
	require.NoError(t, err)

	got, err := Unmarshal(ct.Marshal())
	require.NoError(t, err)
	assert.Equal(t, ct.Marshal(), got.Marshal())
	assert.Equal(t, seeds, got.SignerSeeds)
	assert.Equal(t, ct.Accounts, got.Accounts)
}

func TestCompileErrors(t *testing.T) {
	_, _, err := Compile(nil, nil)
	assert.ErrorIs(t, err, ErrNoInstructions)

	many := make([]types.AccountMeta, 0, 300)
	for i := 0; i < 300; i++ {
		var pk types.Pubkey
		pk[0], pk[1] = byte(i), byte(i>>8)
		many = append(many, types.ReadOnly(pk))
	}
	_, _, err = Compile([]types.Instruction{{ProgramID: progA, Accounts: many}}, nil)
	assert.ErrorIs(t, err, ErrTooManyAccounts)

	bad := &CompiledTransaction{
		Accounts:     []types.Pubkey{progA},
		Instructions: []CompiledInstruction{{ProgramIDIndex: 0, Accounts: []uint8{7}}},
	}
	_, err = bad.Decompile()
	assert.ErrorIs(t, err, ErrUnknownAccount)
}
