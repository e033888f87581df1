package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubkeyBase58RoundTrip(t *testing.T) {
	kp, err := NewKeypair()
	require.NoError(t, err)

	pk := kp.Pubkey()
	parsed, err := ParsePubkey(pk.String())
	require.NoError(t, err)
	assert.Equal(t, pk, parsed)

	_, err = ParsePubkey("not-base58-0OIl")
	assert.ErrorIs(t, err, ErrInvalidPubkey)
}

func TestKeypairIsOnCurve(t *testing.T) {
	for i := 0; i < 8; i++ {
		kp, err := NewKeypair()
		require.NoError(t, err)
		assert.True(t, IsOnCurve(kp.Pubkey()))
	}
}

func TestFindProgramAddressDeterministicAndOffCurve(t *testing.T) {
	program := ProgramID("test")
	seeds := [][]byte{[]byte("vault_config")}

	a1, b1, err := FindProgramAddress(seeds, program)
	require.NoError(t, err)
	a2, b2, err := FindProgramAddress(seeds, program)
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)
	assert.False(t, IsOnCurve(a1))

	again, err := CreateProgramAddress(append(seeds, []byte{b1}), program)
	require.NoError(t, err)
	assert.Equal(t, a1, again)

	other, _, err := FindProgramAddress(seeds, ProgramID("other"))
	require.NoError(t, err)
	assert.NotEqual(t, a1, other)
}

func TestCreateProgramAddressSeedLimits(t *testing.T) {
	_, err := CreateProgramAddress([][]byte{make([]byte, MaxSeedLen+1)}, ProgramID("x"))
	assert.ErrorIs(t, err, ErrMaxSeedLength)

	many := make([][]byte, MaxSeeds+1)
	_, err = CreateProgramAddress(many, ProgramID("x"))
	assert.ErrorIs(t, err, ErrTooManySeeds)
}

func TestSignAndVerify(t *testing.T) {
	kp, err := NewKeypair()
	require.NoError(t, err)

	msg := Hash{1, 2, 3}
	sig, err := kp.Sign(msg)
	require.NoError(t, err)
	assert.True(t, VerifySignature(kp.Pubkey(), msg, sig))

	sig[0] ^= 0x01
	assert.False(t, VerifySignature(kp.Pubkey(), msg, sig))

	restored, err := KeypairFromSecret(kp.Secret())
	require.NoError(t, err)
	assert.Equal(t, kp.Pubkey(), restored.Pubkey())
}

func TestTransactionWireRoundTrip(t *testing.T) {
	payer, err := NewKeypair()
	require.NoError(t, err)

	ix := Instruction{
		ProgramID: ProgramID("demo"),
		Accounts: []AccountMeta{
			WritableSigner(payer.Pubkey()),
			ReadOnly(ProgramID("ro")),
		},
		Data: []byte{9, 8, 7},
	}
	tx := NewTransaction(42, ix)
	require.NoError(t, tx.Sign(payer))

	decoded, err := UnmarshalTransaction(tx.Marshal())
	require.NoError(t, err)
	assert.Equal(t, tx.ID(), decoded.ID())
	assert.Equal(t, tx.Instructions, decoded.Instructions)

	signers, err := decoded.VerifySignatures()
	require.NoError(t, err)
	assert.True(t, signers[payer.Pubkey()])
}

func TestVerifySignaturesRequiresDeclaredSigners(t *testing.T) {
	a, err := NewKeypair()
	require.NoError(t, err)
	b, err := NewKeypair()
	require.NoError(t, err)

	tx := NewTransaction(1, Instruction{
		ProgramID: ProgramID("demo"),
		Accounts:  []AccountMeta{ReadOnlySigner(a.Pubkey()), ReadOnlySigner(b.Pubkey())},
	})
	require.NoError(t, tx.Sign(a))

	_, err = tx.VerifySignatures()
	assert.ErrorIs(t, err, ErrMissingSignature)

	require.NoError(t, tx.Sign(b))
	_, err = tx.VerifySignatures()
	assert.NoError(t, err)
}

func TestWalkWireRejectsTruncatedData(t *testing.T) {
	data := NewWireWriter().Bytes(1, []byte("abcdef")).Finish()
	err := WalkWire(data[:len(data)-2], func(WireField) error { return nil })
	assert.ErrorIs(t, err, ErrInvalidWireData)
}
