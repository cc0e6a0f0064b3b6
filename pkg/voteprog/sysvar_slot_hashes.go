package voteprog

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/tidwall/btree"
	"go.alpenglow.io/votor/pkg/accounts"
	"go.alpenglow.io/votor/pkg/base58"
)

const SysvarSlotHashesAddrStr = "SysvarS1otHashes111111111111111111111111111"

var SysvarSlotHashesAddr = base58.MustDecodeFromString(SysvarSlotHashesAddrStr)

// SlotHashesMaxEntries bounds the history carried by the sysvar.
const SlotHashesMaxEntries = 512

// SysvarSlotHashes is the recent slot-to-bank-hash history, ordered by
// slot. Lookups during vote verification are by slot, hence the
// ordered map rather than the wire-format vector.
type SysvarSlotHashes struct {
	hashes btree.Map[uint64, [32]byte]
}

func (sh *SysvarSlotHashes) Put(slot uint64, hash [32]byte) {
	sh.hashes.Set(slot, hash)
	for sh.hashes.Len() > SlotHashesMaxEntries {
		oldest, _, _ := sh.hashes.Min()
		sh.hashes.Delete(oldest)
	}
}

func (sh *SysvarSlotHashes) Get(slot uint64) ([32]byte, bool) {
	return sh.hashes.Get(slot)
}

func (sh *SysvarSlotHashes) Contains(slot uint64) bool {
	_, ok := sh.hashes.Get(slot)
	return ok
}

func (sh *SysvarSlotHashes) Len() int {
	return sh.hashes.Len()
}

// Newest returns the highest slot in the history, or false when the
// history is empty.
func (sh *SysvarSlotHashes) Newest() (uint64, bool) {
	slot, _, ok := sh.hashes.Max()
	return slot, ok
}

func (sh *SysvarSlotHashes) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	numEntries, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read entry count when decoding SysvarSlotHashes: %w", err)
	}

	sh.hashes.Clear()
	for i := uint64(0); i < numEntries; i++ {
		slot, err := decoder.ReadUint64(bin.LE)
		if err != nil {
			return fmt.Errorf("failed to read Slot when decoding SysvarSlotHashes: %w", err)
		}

		hashBytes, err := decoder.ReadBytes(32)
		if err != nil {
			return fmt.Errorf("failed to read Hash when decoding SysvarSlotHashes: %w", err)
		}

		var hash [32]byte
		copy(hash[:], hashBytes)
		sh.hashes.Set(slot, hash)
	}
	return
}

// MarshalWithEncoder writes entries newest-first, matching the on-chain
// vector layout.
func (sh *SysvarSlotHashes) MarshalWithEncoder(encoder *bin.Encoder) (err error) {
	err = encoder.WriteUint64(uint64(sh.hashes.Len()), bin.LE)
	if err != nil {
		return err
	}

	sh.hashes.Descend(^uint64(0), func(slot uint64, hash [32]byte) bool {
		err = encoder.WriteUint64(slot, bin.LE)
		if err != nil {
			return false
		}
		err = encoder.WriteBytes(hash[:], false)
		return err == nil
	})
	return
}

func (sh *SysvarSlotHashes) MustUnmarshalWithDecoder(decoder *bin.Decoder) {
	err := sh.UnmarshalWithDecoder(decoder)
	if err != nil {
		panic(err.Error())
	}
}

func ReadSlotHashesSysvar(accts accounts.Accounts) (SysvarSlotHashes, error) {
	var slotHashes SysvarSlotHashes

	slotHashesAcct, err := accts.GetAccount(&SysvarSlotHashesAddr)
	if err != nil {
		return slotHashes, fmt.Errorf("failed to read slot hashes sysvar account: %w", err)
	}

	dec := bin.NewBinDecoder(slotHashesAcct.Data)
	err = slotHashes.UnmarshalWithDecoder(dec)
	return slotHashes, err
}
