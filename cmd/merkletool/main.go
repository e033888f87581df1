package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"hookvault/types"
	"hookvault/utils/merkle"
)

// MemberProof 单个成员的叶子与证明
type MemberProof struct {
	Member types.Pubkey `json:"member"`
	Index  int          `json:"index"`
	Leaf   types.Hash   `json:"leaf"`
	Proof  []types.Hash `json:"proof"`
}

// Report 整棵树的输出
type Report struct {
	Root    types.Hash    `json:"root"`
	Leaves  int           `json:"leaves"` // 补齐后的叶子数
	Members []MemberProof `json:"members"`
}

// readMembers 每行一个 base58 公钥，忽略空行和 # 注释
func readMembers(r io.Reader) ([]types.Pubkey, error) {
	var out []types.Pubkey
	seen := make(map[types.Pubkey]bool)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		pk, err := types.ParsePubkey(s)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if seen[pk] {
			return nil, fmt.Errorf("line %d: duplicate member %s", line, pk)
		}
		seen[pk] = true
		out = append(out, pk)
	}
	return out, sc.Err()
}

func buildReport(members []types.Pubkey) (*Report, error) {
	tree, err := merkle.NewTree(members)
	if err != nil {
		return nil, err
	}
	rep := &Report{Root: tree.Root(), Leaves: tree.Len()}
	for i, m := range members {
		proof, err := tree.Proof(i)
		if err != nil {
			return nil, err
		}
		rep.Members = append(rep.Members, MemberProof{Member: m, Index: i, Leaf: merkle.HashLeaf(m), Proof: proof})
	}
	return rep, nil
}

func main() {
	membersPath := flag.String("members", "", "成员列表文件，每行一个 base58 公钥；留空读 stdin")
	rootOnly := flag.Bool("root", false, "只输出根")
	flag.Parse()

	in := io.Reader(os.Stdin)
	if *membersPath != "" {
		f, err := os.Open(*membersPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	members, err := readMembers(in)
	if err == nil && len(members) == 0 {
		err = fmt.Errorf("no members")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "read members: %v\n", err)
		os.Exit(1)
	}
	rep, err := buildReport(members)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build tree: %v\n", err)
		os.Exit(1)
	}

	if *rootOnly {
		fmt.Println(rep.Root)
		return
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
