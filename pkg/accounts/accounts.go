// Package accounts defines the account record shared by the runtime
// and an in-memory store used by tests and tooling.
package accounts

import (
	bin "github.com/gagliardetto/binary"
)

type Accounts interface {
	GetAccount(pubkey *[32]byte) (*Account, error)
	SetAccount(pubkey *[32]byte, acct *Account) error
}

type Account struct {
	Key        [32]byte
	Lamports   uint64
	Data       []byte
	Owner      [32]byte
	Executable bool
	RentEpoch  uint64
}

func (a *Account) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	key, err := decoder.ReadBytes(32)
	if err != nil {
		return err
	}
	copy(a.Key[:], key)

	a.Lamports, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	dataLen, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}
	a.Data, err = decoder.ReadBytes(int(dataLen))
	if err != nil {
		return err
	}

	owner, err := decoder.ReadBytes(32)
	if err != nil {
		return err
	}
	copy(a.Owner[:], owner)

	a.Executable, err = decoder.ReadBool()
	if err != nil {
		return err
	}

	a.RentEpoch, err = decoder.ReadUint64(bin.LE)
	return err
}

func (a *Account) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteBytes(a.Key[:], false)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(a.Lamports, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(uint64(len(a.Data)), bin.LE)
	if err != nil {
		return err
	}
	err = encoder.WriteBytes(a.Data, false)
	if err != nil {
		return err
	}

	err = encoder.WriteBytes(a.Owner[:], false)
	if err != nil {
		return err
	}

	err = encoder.WriteBool(a.Executable)
	if err != nil {
		return err
	}

	return encoder.WriteUint64(a.RentEpoch, bin.LE)
}
