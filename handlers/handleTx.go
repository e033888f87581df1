package handlers

import (
	"errors"
	"io"
	"net/http"

	"hookvault/logs"
	"hookvault/types"
	"hookvault/vm"
)

// TxResponse 提交或模拟交易的响应
type TxResponse struct {
	TxID    string      `json:"tx_id"`
	Receipt *vm.Receipt `json:"receipt,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// 处理交易提交，请求体为 Transaction 的 protowire 编码
func (hm *HandlerManager) HandleTx(w http.ResponseWriter, r *http.Request) {
	hm.submit(w, r, "tx", hm.exec.Execute)
}

// 处理交易模拟，不落盘
func (hm *HandlerManager) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	hm.submit(w, r, "simulate", hm.exec.Simulate)
}

func (hm *HandlerManager) submit(w http.ResponseWriter, r *http.Request, api string, run func(*types.Transaction) (*vm.Receipt, error)) {
	if r.Method != http.MethodPost {
		hm.fail(w, api, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		hm.fail(w, api, "failed to read request body", http.StatusBadRequest)
		return
	}
	tx, err := types.UnmarshalTransaction(body)
	if err != nil {
		hm.fail(w, api, "invalid transaction: "+err.Error(), http.StatusBadRequest)
		return
	}

	id := tx.ID().String()
	receipt, err := run(tx)
	resp := TxResponse{TxID: id, Receipt: receipt}
	if err == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.Error = err.Error()
	hm.Stats.RecordFailure(api)
	switch {
	case receipt != nil:
		// 执行失败，回执已记录
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, vm.ErrAlreadyProcessed):
		writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, vm.ErrEmptyTransaction),
		errors.Is(err, types.ErrMissingSignature),
		errors.Is(err, types.ErrBadSignature):
		writeJSON(w, http.StatusBadRequest, resp)
	default:
		logs.Error("[handlers] %s %s: %v", api, id, err)
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}
