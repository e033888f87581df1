package keys

import (
	"strings"
	"testing"

	"hookvault/types"

	"github.com/stretchr/testify/assert"
)

func TestAccountKeyRoundTrip(t *testing.T) {
	addr := types.ProgramID("vault")
	key := KeyAccount(addr)

	assert.True(t, strings.HasPrefix(key, "v1_account_"))
	got, ok := AccountFromKey(key)
	assert.True(t, ok)
	assert.Equal(t, addr, got)

	_, ok = AccountFromKey(KeyReceipt(types.Hash{1}))
	assert.False(t, ok)
}

func TestOwnerIndexPrefix(t *testing.T) {
	owner := types.ProgramID("scheduler")
	addr := types.ProgramID("task")

	assert.True(t, strings.HasPrefix(KeyOwnerIndex(owner, addr), KeyOwnerIndexPrefix(owner)))
	assert.False(t, strings.HasPrefix(KeyOwnerIndex(addr, owner), KeyOwnerIndexPrefix(owner)))
}

func TestCategorizeKey(t *testing.T) {
	pk := types.ProgramID("x")
	assert.Equal(t, CategoryAccount, CategorizeKey(KeyAccount(pk)))
	assert.Equal(t, CategoryIndex, CategorizeKey(KeyOwnerIndex(pk, pk)))
	assert.Equal(t, CategoryReceipt, CategorizeKey(KeyReceipt(types.Hash{})))
	assert.Equal(t, CategoryOther, CategorizeKey("misc"))
	assert.Equal(t, "account_abc", StripVersion("v1_account_abc"))
}
