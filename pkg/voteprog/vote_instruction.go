package voteprog

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	VoteProgramInstrTypeInitializeAccount = iota
	VoteProgramInstrTypeAuthorize
	VoteProgramInstrTypeAuthorizeChecked
	VoteProgramInstrTypeAuthorizeWithSeed
	VoteProgramInstrTypeAuthorizeCheckedWithSeed
	VoteProgramInstrTypeNotarize
	VoteProgramInstrTypeNotarizeFallback
	VoteProgramInstrTypeFinalize
	VoteProgramInstrTypeSkip
	VoteProgramInstrTypeSkipFallback
	VoteProgramInstrTypeWithdraw
	VoteProgramInstrTypeUpdateValidatorIdentity
	VoteProgramInstrTypeUpdateCommission
	VoteProgramInstrTypeCertificate
)

const CUVoteProgramDefaultComputeUnits = 2100

// CurrentNotarizeVoteVersion is the notarize vote message version this
// program accepts.
const CurrentNotarizeVoteVersion = 1

const (
	VoteAuthorizeTypeVoter = iota
	VoteAuthorizeTypeWithdrawer
)

type VoteInstrVoteAuthorize struct {
	Pubkey        solana.PublicKey
	VoteAuthorize uint32
}

type VoteInstrAuthorizeWithSeed struct {
	AuthorizationType               uint32
	CurrentAuthorityDerivedKeyBase  solana.PublicKey
	CurrentAuthorityDerivedKeyOwner solana.PublicKey
	CurrentAuthorityDerivedKeySeed  string
	NewAuthority                    solana.PublicKey
}

type VoteInstrNotarize struct {
	Version   byte
	Slot      uint64
	BlockID   solana.Hash
	BankHash  solana.Hash
	Timestamp *int64
}

type VoteInstrFinalize struct {
	Slot     uint64
	BlockID  solana.Hash
	BankHash solana.Hash
}

type VoteInstrSkip struct {
	Start uint64
	End   uint64
}

type VoteInstrWithdraw struct {
	Lamports uint64
}

type VoteInstrUpdateValidatorIdentity struct {
	NodePubkey solana.PublicKey
}

type VoteInstrUpdateCommission struct {
	Commission byte
}

// VoteInstrCertificate carries an opaque BLS certificate payload.
// Processing is not yet implemented.
type VoteInstrCertificate struct {
	Data []byte
}

func (voteInit *VoteInit) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	nodePk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(voteInit.NodePubkey[:], nodePk)

	authVoter, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(voteInit.AuthorizedVoter[:], authVoter)

	authWithdrawer, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(voteInit.AuthorizedWithdrawer[:], authWithdrawer)

	voteInit.Commission, err = decoder.ReadByte()
	return err
}

func (voteInit *VoteInit) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteBytes(voteInit.NodePubkey[:], false)
	if err != nil {
		return err
	}

	err = encoder.WriteBytes(voteInit.AuthorizedVoter[:], false)
	if err != nil {
		return err
	}

	err = encoder.WriteBytes(voteInit.AuthorizedWithdrawer[:], false)
	if err != nil {
		return err
	}

	return encoder.WriteByte(voteInit.Commission)
}

func (voteAuthorize *VoteInstrVoteAuthorize) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	pk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(voteAuthorize.Pubkey[:], pk)

	voteAuthorize.VoteAuthorize, err = decoder.ReadUint32(bin.LE)
	return err
}

func (voteAuthorize *VoteInstrVoteAuthorize) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteBytes(voteAuthorize.Pubkey[:], false)
	if err != nil {
		return err
	}

	return encoder.WriteUint32(voteAuthorize.VoteAuthorize, bin.LE)
}

func (authWithSeed *VoteInstrAuthorizeWithSeed) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	authWithSeed.AuthorizationType, err = decoder.ReadUint32(bin.LE)
	if err != nil {
		return err
	}

	base, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(authWithSeed.CurrentAuthorityDerivedKeyBase[:], base)

	owner, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(authWithSeed.CurrentAuthorityDerivedKeyOwner[:], owner)

	authWithSeed.CurrentAuthorityDerivedKeySeed, err = decoder.ReadRustString()
	if err != nil {
		return err
	}

	newAuthority, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(authWithSeed.NewAuthority[:], newAuthority)
	return nil
}

func (authWithSeed *VoteInstrAuthorizeWithSeed) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint32(authWithSeed.AuthorizationType, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteBytes(authWithSeed.CurrentAuthorityDerivedKeyBase[:], false)
	if err != nil {
		return err
	}

	err = encoder.WriteBytes(authWithSeed.CurrentAuthorityDerivedKeyOwner[:], false)
	if err != nil {
		return err
	}

	err = encoder.WriteRustString(authWithSeed.CurrentAuthorityDerivedKeySeed)
	if err != nil {
		return err
	}

	return encoder.WriteBytes(authWithSeed.NewAuthority[:], false)
}

func (notarize *VoteInstrNotarize) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	notarize.Version, err = decoder.ReadByte()
	if err != nil {
		return err
	}

	notarize.Slot, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	blockId, err := decoder.ReadBytes(32)
	if err != nil {
		return err
	}
	copy(notarize.BlockID[:], blockId)

	bankHash, err := decoder.ReadBytes(32)
	if err != nil {
		return err
	}
	copy(notarize.BankHash[:], bankHash)

	hasTimestamp, err := decoder.ReadBool()
	if err != nil {
		return err
	}
	if hasTimestamp {
		timestamp, err := decoder.ReadInt64(bin.LE)
		if err != nil {
			return err
		}
		notarize.Timestamp = &timestamp
	}
	return nil
}

func (notarize *VoteInstrNotarize) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteByte(notarize.Version)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(notarize.Slot, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteBytes(notarize.BlockID[:], false)
	if err != nil {
		return err
	}

	err = encoder.WriteBytes(notarize.BankHash[:], false)
	if err != nil {
		return err
	}

	err = encoder.WriteBool(notarize.Timestamp != nil)
	if err != nil {
		return err
	}
	if notarize.Timestamp != nil {
		return encoder.WriteInt64(*notarize.Timestamp, bin.LE)
	}
	return nil
}

func (finalize *VoteInstrFinalize) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	finalize.Slot, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	blockId, err := decoder.ReadBytes(32)
	if err != nil {
		return err
	}
	copy(finalize.BlockID[:], blockId)

	bankHash, err := decoder.ReadBytes(32)
	if err != nil {
		return err
	}
	copy(finalize.BankHash[:], bankHash)
	return nil
}

func (finalize *VoteInstrFinalize) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint64(finalize.Slot, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteBytes(finalize.BlockID[:], false)
	if err != nil {
		return err
	}

	return encoder.WriteBytes(finalize.BankHash[:], false)
}

func (skip *VoteInstrSkip) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	skip.Start, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	skip.End, err = decoder.ReadUint64(bin.LE)
	return err
}

func (skip *VoteInstrSkip) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint64(skip.Start, bin.LE)
	if err != nil {
		return err
	}

	return encoder.WriteUint64(skip.End, bin.LE)
}

func (withdraw *VoteInstrWithdraw) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	withdraw.Lamports, err = decoder.ReadUint64(bin.LE)
	return err
}

func (withdraw *VoteInstrWithdraw) MarshalWithEncoder(encoder *bin.Encoder) error {
	return encoder.WriteUint64(withdraw.Lamports, bin.LE)
}

func (updateIdentity *VoteInstrUpdateValidatorIdentity) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	nodePk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(updateIdentity.NodePubkey[:], nodePk)
	return nil
}

func (updateIdentity *VoteInstrUpdateValidatorIdentity) MarshalWithEncoder(encoder *bin.Encoder) error {
	return encoder.WriteBytes(updateIdentity.NodePubkey[:], false)
}

func (updateCommission *VoteInstrUpdateCommission) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	updateCommission.Commission, err = decoder.ReadByte()
	return err
}

func (updateCommission *VoteInstrUpdateCommission) MarshalWithEncoder(encoder *bin.Encoder) error {
	return encoder.WriteByte(updateCommission.Commission)
}

func (certificate *VoteInstrCertificate) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	dataLen, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}
	if dataLen > uint64(decoder.Remaining()) {
		return InstrErrInvalidInstructionData
	}

	certificate.Data, err = decoder.ReadBytes(int(dataLen))
	return err
}

func (certificate *VoteInstrCertificate) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint64(uint64(len(certificate.Data)), bin.LE)
	if err != nil {
		return err
	}

	return encoder.WriteBytes(certificate.Data, false)
}
