// Package merkle 白名单承诺：叶子 = sha256(成员公钥)，内部节点按字节序排序后拼接再哈希，
// 因此校验时不需要左右方向位。
package merkle

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"hookvault/types"
)

var (
	ErrEmptyTree  = errors.New("merkle tree needs at least one leaf")
	ErrLeafIndex  = errors.New("leaf index out of range")
	ErrNotAMember = errors.New("pubkey is not a leaf of the tree")
)

// HashLeaf 成员叶子
func HashLeaf(member types.Pubkey) types.Hash {
	return sha256.Sum256(member[:])
}

// HashPair 可交换的节点哈希：小的在前
func HashPair(a, b types.Hash) types.Hash {
	h := sha256.New()
	if bytes.Compare(a[:], b[:]) <= 0 {
		h.Write(a[:])
		h.Write(b[:])
	} else {
		h.Write(b[:])
		h.Write(a[:])
	}
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Fold 从叶子沿证明折叠到根
func Fold(leaf types.Hash, proof []types.Hash) types.Hash {
	node := leaf
	for _, sibling := range proof {
		node = HashPair(node, sibling)
	}
	return node
}

// Verify 证明是否把 leaf 折叠到 root
func Verify(leaf types.Hash, proof []types.Hash, root types.Hash) bool {
	return Fold(leaf, proof) == root
}

// ========== 离线建树 ==========

// Tree 完整的层级结构，叶子数补零到 2 的幂
type Tree struct {
	layers [][]types.Hash
	index  map[types.Hash]int
}

// NewTree 按成员顺序建树
func NewTree(members []types.Pubkey) (*Tree, error) {
	if len(members) == 0 {
		return nil, ErrEmptyTree
	}
	width := 1
	for width < len(members) {
		width <<= 1
	}

	leaves := make([]types.Hash, width)
	index := make(map[types.Hash]int, len(members))
	for i, m := range members {
		leaves[i] = HashLeaf(m)
		if _, dup := index[leaves[i]]; !dup {
			index[leaves[i]] = i
		}
	}

	layers := [][]types.Hash{leaves}
	cur := leaves
	for len(cur) > 1 {
		next := make([]types.Hash, len(cur)/2)
		for i := range next {
			next[i] = HashPair(cur[2*i], cur[2*i+1])
		}
		layers = append(layers, next)
		cur = next
	}
	return &Tree{layers: layers, index: index}, nil
}

func (t *Tree) Root() types.Hash {
	return t.layers[len(t.layers)-1][0]
}

// Len 补齐后的叶子数
func (t *Tree) Len() int {
	return len(t.layers[0])
}

// Proof 第 i 个叶子的兄弟节点链
func (t *Tree) Proof(i int) ([]types.Hash, error) {
	if i < 0 || i >= len(t.layers[0]) {
		return nil, fmt.Errorf("%w: %d", ErrLeafIndex, i)
	}
	proof := make([]types.Hash, 0, len(t.layers)-1)
	for _, layer := range t.layers[:len(t.layers)-1] {
		proof = append(proof, layer[i^1])
		i /= 2
	}
	return proof, nil
}

// ProofFor 按成员公钥取证明
func (t *Tree) ProofFor(member types.Pubkey) ([]types.Hash, error) {
	i, ok := t.index[HashLeaf(member)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotAMember, member)
	}
	return t.Proof(i)
}
