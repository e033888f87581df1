package handlers

import (
	"errors"
	"net/http"

	"hookvault/token"
	"hookvault/types"
	"hookvault/vault"
	"hookvault/vm"
)

// VaultConfigResponse 金库配置
type VaultConfigResponse struct {
	Address types.Pubkey  `json:"address"`
	Config  *vault.Config `json:"config"`
	Staged  bool          `json:"staged"`
	// 托管账户余额
	Holding string `json:"holding_balance"`
}

// MemberResponse 成员准入状态
type MemberResponse struct {
	Member          types.Pubkey `json:"member"`
	Admission       types.Pubkey `json:"admission"`
	Present         bool         `json:"present"`
	AmountDeposited string       `json:"amount_deposited"`
	// 成员关联代币账户余额，未开户时为空
	Balance string `json:"balance,omitempty"`
}

// 处理金库配置查询 /vault/config
func (hm *HandlerManager) HandleVaultConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := vault.LoadConfig(hm.exec.Account)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, vm.ErrAccountNotFound) {
			code = http.StatusNotFound
		}
		hm.fail(w, "vault_config", err.Error(), code)
		return
	}
	addr, _ := vault.ConfigAddress()
	resp := VaultConfigResponse{Address: addr, Config: cfg, Staged: cfg.Staged()}
	if amt, ok := hm.tokenBalance(cfg.Holding); ok {
		resp.Holding = token.FormatAmount(amt, vault.Decimals)
	}
	writeJSON(w, http.StatusOK, resp)
}

// 处理成员查询 /vault/member?address=
func (hm *HandlerManager) HandleVaultMember(w http.ResponseWriter, r *http.Request) {
	member, ok := pubkeyParam(r, "address")
	if !ok {
		hm.fail(w, "vault_member", "missing or invalid address", http.StatusBadRequest)
		return
	}
	rec, present, err := vault.LookupAdmission(hm.exec.Account, member)
	if err != nil {
		hm.fail(w, "vault_member", err.Error(), http.StatusInternalServerError)
		return
	}
	admission, _ := vault.AdmissionAddress(member)
	resp := MemberResponse{Member: member, Admission: admission, Present: present}
	var deposited uint64
	if present {
		deposited = rec.AmountDeposited
	}
	resp.AmountDeposited = token.FormatAmount(deposited, vault.Decimals)

	if cfg, err := vault.LoadConfig(hm.exec.Account); err == nil {
		ata, _ := token.AssociatedAddress(member, cfg.Mint)
		if amt, ok := hm.tokenBalance(ata); ok {
			resp.Balance = token.FormatAmount(amt, vault.Decimals)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (hm *HandlerManager) tokenBalance(addr types.Pubkey) (uint64, bool) {
	acc, found, err := hm.exec.Account(addr)
	if err != nil || !found || acc.Owner != token.ProgramID {
		return 0, false
	}
	ta, err := token.UnmarshalTokenAccount(acc.Data)
	if err != nil {
		return 0, false
	}
	return ta.Amount, true
}
