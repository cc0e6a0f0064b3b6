package voteprog

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"go.alpenglow.io/votor/pkg/accounts"
	"go.alpenglow.io/votor/pkg/base58"
)

const SysvarRentAddrStr = "SysvarRent111111111111111111111111111111111"

var SysvarRentAddr = base58.MustDecodeFromString(SysvarRentAddrStr)

const SysvarRentStructLen = 17

type SysvarRent struct {
	LamportsPerUint8Year uint64
	ExemptionThreshold   float64
	BurnPercent          byte
}

func (sr *SysvarRent) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	sr.LamportsPerUint8Year, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read LamportsPerUint8Year when decoding SysvarRent: %w", err)
	}

	sr.ExemptionThreshold, err = decoder.ReadFloat64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read ExemptionThreshold when decoding SysvarRent: %w", err)
	}

	sr.BurnPercent, err = decoder.ReadByte()
	if err != nil {
		return fmt.Errorf("failed to read BurnPercent when decoding SysvarRent: %w", err)
	}
	return
}

func (sr *SysvarRent) MarshalWithEncoder(encoder *bin.Encoder) (err error) {
	err = encoder.WriteUint64(sr.LamportsPerUint8Year, bin.LE)
	if err != nil {
		return err
	}
	err = encoder.WriteFloat64(sr.ExemptionThreshold, bin.LE)
	if err != nil {
		return err
	}
	return encoder.WriteByte(sr.BurnPercent)
}

func (sr *SysvarRent) MustUnmarshalWithDecoder(decoder *bin.Decoder) {
	err := sr.UnmarshalWithDecoder(decoder)
	if err != nil {
		panic(err.Error())
	}
}

const accountStorageOverhead = 128

// MinimumBalance returns the smallest lamport balance at which an
// account with dataLen bytes of data is exempt from rent collection.
func (sr *SysvarRent) MinimumBalance(dataLen uint64) uint64 {
	bytes := dataLen + accountStorageOverhead
	return uint64(float64(bytes*sr.LamportsPerUint8Year) * sr.ExemptionThreshold)
}

func (sr *SysvarRent) IsExempt(lamports uint64, dataLen uint64) bool {
	return lamports >= sr.MinimumBalance(dataLen)
}

func ReadRentSysvar(accts accounts.Accounts) (SysvarRent, error) {
	var rent SysvarRent

	rentAcct, err := accts.GetAccount(&SysvarRentAddr)
	if err != nil {
		return rent, fmt.Errorf("failed to read rent sysvar account: %w", err)
	}

	dec := bin.NewBinDecoder(rentAcct.Data)
	err = rent.UnmarshalWithDecoder(dec)
	return rent, err
}
