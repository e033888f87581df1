package vault

import (
	"fmt"

	"hookvault/types"
	"hookvault/vm"
)

var (
	configDiscriminator    = types.AccountDiscriminator("VaultConfig")
	admissionDiscriminator = types.AccountDiscriminator("AdmissionRecord")
)

// Config 每个部署唯一的金库配置。PendingRoot 为零表示没有待生效的根。
type Config struct {
	Admin       types.Pubkey `json:"admin"`
	Mint        types.Pubkey `json:"mint"`
	Holding     types.Pubkey `json:"holding"`
	ActiveRoot  types.Hash   `json:"active_root"`
	PendingRoot types.Hash   `json:"pending_root"`
	Bump        uint8        `json:"bump"`
}

// Staged 是否有轮换在等待 apply
func (c *Config) Staged() bool { return !c.PendingRoot.IsZero() }

func (c *Config) Marshal() []byte {
	return types.NewWireWriter(configDiscriminator).
		Pubkey(1, c.Admin).
		Pubkey(2, c.Mint).
		Pubkey(3, c.Holding).
		Hash(4, c.ActiveRoot).
		Hash(5, c.PendingRoot).
		Uint(6, uint64(c.Bump)).
		Finish()
}

func UnmarshalConfig(b []byte) (*Config, error) {
	body, err := types.SplitDiscriminator(b, configDiscriminator)
	if err != nil {
		return nil, fmt.Errorf("decode vault config: %w", err)
	}
	c := &Config{}
	err = types.WalkWire(body, func(f types.WireField) error {
		var err error
		switch f.Num {
		case 1:
			c.Admin, err = f.Pubkey()
		case 2:
			c.Mint, err = f.Pubkey()
		case 3:
			c.Holding, err = f.Pubkey()
		case 4:
			c.ActiveRoot, err = f.Hash()
		case 5:
			c.PendingRoot, err = f.Hash()
		case 6:
			c.Bump, err = f.Uint8()
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("decode vault config: %w", err)
	}
	return c, nil
}

// AdmissionRecord 成员的准入记录；记录存在即在白名单内
type AdmissionRecord struct {
	Member          types.Pubkey `json:"member"`
	AmountDeposited uint64       `json:"amount_deposited"`
	Bump            uint8        `json:"bump"`
}

func (r *AdmissionRecord) Marshal() []byte {
	return types.NewWireWriter(admissionDiscriminator).
		Pubkey(1, r.Member).
		Uint(2, r.AmountDeposited).
		Uint(3, uint64(r.Bump)).
		Finish()
}

func UnmarshalAdmissionRecord(b []byte) (*AdmissionRecord, error) {
	body, err := types.SplitDiscriminator(b, admissionDiscriminator)
	if err != nil {
		return nil, fmt.Errorf("decode admission record: %w", err)
	}
	r := &AdmissionRecord{}
	err = types.WalkWire(body, func(f types.WireField) error {
		var err error
		switch f.Num {
		case 1:
			r.Member, err = f.Pubkey()
		case 2:
			r.AmountDeposited = f.Varint
		case 3:
			r.Bump, err = f.Uint8()
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("decode admission record: %w", err)
	}
	return r, nil
}

// ========== 查询 ==========

// AccountReader 按地址读取账户，显式返回是否存在。
// vm.InvokeContext.Lookup 和 vm.Executor.Account 都满足它。
type AccountReader func(addr types.Pubkey) (*vm.Account, bool, error)

// LoadConfig 读取金库配置
func LoadConfig(read AccountReader) (*Config, error) {
	addr, _ := ConfigAddress()
	acc, ok, err := read(addr)
	if err != nil {
		return nil, err
	}
	if !ok || acc.Owner != ProgramID {
		return nil, fmt.Errorf("%w: vault config %s", vm.ErrAccountNotFound, addr)
	}
	return UnmarshalConfig(acc.Data)
}

// LookupAdmission 成员的准入记录；不存在或不归本程序所有时 present=false
func LookupAdmission(read AccountReader, member types.Pubkey) (rec *AdmissionRecord, present bool, err error) {
	addr, _ := AdmissionAddress(member)
	acc, ok, err := read(addr)
	if err != nil {
		return nil, false, err
	}
	if !ok || acc.Owner != ProgramID || len(acc.Data) == 0 {
		return nil, false, nil
	}
	rec, err = UnmarshalAdmissionRecord(acc.Data)
	if err != nil {
		return nil, false, err
	}
	if rec.Member != member {
		return nil, false, nil
	}
	return rec, true, nil
}
