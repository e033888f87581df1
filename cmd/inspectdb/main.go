package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"hookvault/config"
	"hookvault/db"
	"hookvault/keys"
	"hookvault/scheduler"
	"hookvault/token"
	"hookvault/types"
	"hookvault/vault"
	"hookvault/vm"
)

// AccountRow 一行账户摘要
type AccountRow struct {
	Address  types.Pubkey
	Owner    string
	Lamports uint64
	DataLen  int
}

// Summary 数据库内容统计
type Summary struct {
	Counts   map[keys.KeyCategory]int
	Accounts []AccountRow
}

var ownerNames = map[types.Pubkey]string{
	vm.SystemProgramID:  "system",
	token.ProgramID:     "token",
	scheduler.ProgramID: "scheduler",
	vault.ProgramID:     "vault",
}

func ownerName(pk types.Pubkey) string {
	if n, ok := ownerNames[pk]; ok {
		return n
	}
	return pk.String()
}

// summarize 扫描全部带版本前缀的 key；owner 非空时只列该程序的账户
func summarize(store *db.Manager, owner string) (*Summary, error) {
	all, err := store.Scan(keys.KeyVersion + "_")
	if err != nil {
		return nil, err
	}
	s := &Summary{Counts: make(map[keys.KeyCategory]int)}
	for k, v := range all {
		s.Counts[keys.CategorizeKey(k)]++
		addr, ok := keys.AccountFromKey(k)
		if !ok {
			continue
		}
		acc, err := vm.UnmarshalAccount(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", keys.StripVersion(k), err)
		}
		name := ownerName(acc.Owner)
		if owner != "" && name != owner {
			continue
		}
		s.Accounts = append(s.Accounts, AccountRow{Address: addr, Owner: name, Lamports: acc.Lamports, DataLen: len(acc.Data)})
	}
	sort.Slice(s.Accounts, func(i, j int) bool {
		if s.Accounts[i].Owner != s.Accounts[j].Owner {
			return s.Accounts[i].Owner < s.Accounts[j].Owner
		}
		return s.Accounts[i].Address.Compare(s.Accounts[j].Address) < 0
	})
	return s, nil
}

func main() {
	dbPath := flag.String("db", "./data", "badger 数据目录")
	owner := flag.String("owner", "", "只列出该程序的账户：system | token | scheduler | vault")
	flag.Parse()

	store, err := db.NewManager(config.DatabaseConfig{Path: *dbPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open DB: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	s, err := summarize(store, *owner)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error during scan: %v\n", err)
		os.Exit(1)
	}

	lsm, vlog := store.Size()
	fmt.Printf("lsm %d bytes, vlog %d bytes\n", lsm, vlog)
	for _, c := range []keys.KeyCategory{keys.CategoryAccount, keys.CategoryIndex, keys.CategoryReceipt, keys.CategoryOther} {
		fmt.Printf("%-8s %d\n", c, s.Counts[c])
	}
	fmt.Println()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tOWNER\tLAMPORTS\tDATA")
	for _, a := range s.Accounts {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", a.Address, a.Owner, a.Lamports, a.DataLen)
	}
	tw.Flush()
}
