package handlers

import (
	"net/http"

	"hookvault/scheduler"
	"hookvault/token"
	"hookvault/types"
	"hookvault/vault"
	"hookvault/vm"
)

// AccountResponse 账户查询响应；Decoded 按 owner 解出已知状态
type AccountResponse struct {
	Address  types.Pubkey `json:"address"`
	Owner    types.Pubkey `json:"owner"`
	Lamports uint64       `json:"lamports"`
	DataLen  int          `json:"data_len"`
	Kind     string       `json:"kind,omitempty"`
	Decoded  interface{}  `json:"decoded,omitempty"`
}

// decodeAccount 识别金库、代币、调度器的账户数据
func decodeAccount(addr types.Pubkey, acc *vm.Account) (string, interface{}) {
	switch acc.Owner {
	case vault.ProgramID:
		if cfg, err := vault.UnmarshalConfig(acc.Data); err == nil {
			return "vault_config", cfg
		}
		if rec, err := vault.UnmarshalAdmissionRecord(acc.Data); err == nil {
			return "admission_record", rec
		}
	case token.ProgramID:
		if m, err := token.UnmarshalMint(acc.Data); err == nil {
			return "mint", m
		}
		if ta, err := token.UnmarshalTokenAccount(acc.Data); err == nil {
			return "token_account", ta
		}
		if l, err := token.UnmarshalExtraAccountMetaList(acc.Data); err == nil {
			return "extra_account_metas", l
		}
	case scheduler.ProgramID:
		if scheduler.IsTask(acc.Data) {
			if t, err := scheduler.UnmarshalTask(acc.Data); err == nil {
				return "task", newTaskView(addr, t, 0)
			}
		}
		if q, err := scheduler.UnmarshalTaskQueue(acc.Data); err == nil {
			return "task_queue", newQueueView(q)
		}
		if a, err := scheduler.UnmarshalTaskQueueAuthority(acc.Data); err == nil {
			return "queue_authority", a
		}
	}
	return "", nil
}

// 处理账户查询 /account?address=
func (hm *HandlerManager) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := pubkeyParam(r, "address")
	if !ok {
		hm.fail(w, "account", "missing or invalid address", http.StatusBadRequest)
		return
	}
	acc, found, err := hm.exec.Account(addr)
	if err != nil {
		hm.fail(w, "account", err.Error(), http.StatusInternalServerError)
		return
	}
	if !found {
		hm.fail(w, "account", "account not found", http.StatusNotFound)
		return
	}
	kind, decoded := decodeAccount(addr, acc)
	writeJSON(w, http.StatusOK, AccountResponse{
		Address:  addr,
		Owner:    acc.Owner,
		Lamports: acc.Lamports,
		DataLen:  len(acc.Data),
		Kind:     kind,
		Decoded:  decoded,
	})
}

// 处理回执查询 /receipt?id=
func (hm *HandlerManager) HandleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseHash(r.URL.Query().Get("id"))
	if err != nil {
		hm.fail(w, "receipt", "missing or invalid id", http.StatusBadRequest)
		return
	}
	receipt, found, err := hm.exec.Receipt(id)
	if err != nil {
		hm.fail(w, "receipt", err.Error(), http.StatusInternalServerError)
		return
	}
	if !found {
		hm.fail(w, "receipt", "receipt not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}
