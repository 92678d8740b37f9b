package state

import (
	"github.com/davecgh/go-spew/spew"

	"github.com/entropyio/go-evmcore/common"
)

// DumpAccount is a human-readable snapshot of a single cached account.
type DumpAccount struct {
	Address     common.Address
	Nonce       uint64
	Balance     string
	Root        string
	CodeHash    string
	Code        string
	Storage     map[string]string
	Alive       bool
	Dirty       bool
}

// Dump is a snapshot of every account currently resident in the
// AccountCache — not the full trie, since walking the on-disk trie is
// outside this module's scope.
type Dump struct {
	Root     string
	Accounts []DumpAccount
}

// RawDump builds a Dump of s's currently cached accounts, in the shape an
// `evm statedump` command would render.
func (s *State) RawDump() Dump {
	d := Dump{Root: s.trie.Hash().Hex()}
	for addr, obj := range s.cache.objects {
		da := DumpAccount{
			Address:  addr,
			Nonce:    obj.account.Nonce,
			Balance:  obj.account.Balance.String(),
			Root:     obj.account.StorageRoot.Hex(),
			CodeHash: obj.account.CodeHash.Hex(),
			Alive:    obj.alive,
			Dirty:    obj.dirty,
			Storage:  make(map[string]string, len(obj.overlay)),
		}
		if obj.code != nil {
			da.Code = common.Bytes2Hex(obj.code)
		}
		for k, v := range obj.overlay {
			da.Storage[k.Hex()] = v.Hex()
		}
		d.Accounts = append(d.Accounts, da)
	}
	return d
}

// String renders the dump with go-spew rather than a hand-rolled formatter.
func (d Dump) String() string {
	return spew.Sdump(d)
}
