package voteprog

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"go.alpenglow.io/votor/pkg/accounts"
	"go.alpenglow.io/votor/pkg/base58"
	"go.alpenglow.io/votor/pkg/safemath"
)

const SysvarEpochScheduleAddrStr = "SysvarEpochSchedu1e111111111111111111111111"

var SysvarEpochScheduleAddr = base58.MustDecodeFromString(SysvarEpochScheduleAddrStr)

const SysvarEpochScheduleStructLen = 33

type SysvarEpochSchedule struct {
	SlotsPerEpoch            uint64
	LeaderScheduleSlotOffset uint64
	Warmup                   bool
	FirstNormalEpoch         uint64
	FirstNormalSlot          uint64
}

func (ses *SysvarEpochSchedule) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	ses.SlotsPerEpoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read SlotsPerEpoch when decoding SysvarEpochSchedule: %w", err)
	}

	ses.LeaderScheduleSlotOffset, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read LeaderScheduleSlotOffset when decoding SysvarEpochSchedule: %w", err)
	}

	ses.Warmup, err = decoder.ReadBool()
	if err != nil {
		return fmt.Errorf("failed to read Warmup when decoding SysvarEpochSchedule: %w", err)
	}

	ses.FirstNormalEpoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read FirstNormalEpoch when decoding SysvarEpochSchedule: %w", err)
	}

	ses.FirstNormalSlot, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read FirstNormalSlot when decoding SysvarEpochSchedule: %w", err)
	}
	return
}

func (ses *SysvarEpochSchedule) MarshalWithEncoder(encoder *bin.Encoder) (err error) {
	err = encoder.WriteUint64(ses.SlotsPerEpoch, bin.LE)
	if err != nil {
		return err
	}
	err = encoder.WriteUint64(ses.LeaderScheduleSlotOffset, bin.LE)
	if err != nil {
		return err
	}
	err = encoder.WriteBool(ses.Warmup)
	if err != nil {
		return err
	}
	err = encoder.WriteUint64(ses.FirstNormalEpoch, bin.LE)
	if err != nil {
		return err
	}
	return encoder.WriteUint64(ses.FirstNormalSlot, bin.LE)
}

func (ses *SysvarEpochSchedule) MustUnmarshalWithDecoder(decoder *bin.Decoder) {
	err := ses.UnmarshalWithDecoder(decoder)
	if err != nil {
		panic(err.Error())
	}
}

// SlotIndexInEpoch returns how far into its epoch the given slot is.
// Slots before FirstNormalSlot belong to warmup epochs, which the vote
// program treats as part of one long pre-normal stretch.
func (ses *SysvarEpochSchedule) SlotIndexInEpoch(slot uint64) uint64 {
	if ses.SlotsPerEpoch == 0 {
		return 0
	}
	return safemath.SaturatingSubU64(slot, ses.FirstNormalSlot) % ses.SlotsPerEpoch
}

func ReadEpochScheduleSysvar(accts accounts.Accounts) (SysvarEpochSchedule, error) {
	var epochSchedule SysvarEpochSchedule

	epochScheduleAcct, err := accts.GetAccount(&SysvarEpochScheduleAddr)
	if err != nil {
		return epochSchedule, fmt.Errorf("failed to read epoch schedule sysvar account: %w", err)
	}

	dec := bin.NewBinDecoder(epochScheduleAcct.Data)
	err = epochSchedule.UnmarshalWithDecoder(dec)
	return epochSchedule, err
}
