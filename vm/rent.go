package vm

// AccountStorageOverhead 每个账户按固定 128 字节头计租
const AccountStorageOverhead = 128

// Rent 存储租金参数
type Rent struct {
	LamportsPerByte uint64
}

// MinimumBalance 存放 size 字节数据的账户需要预存的 lamports
func (r Rent) MinimumBalance(size int) uint64 {
	return uint64(AccountStorageOverhead+size) * r.LamportsPerByte
}
