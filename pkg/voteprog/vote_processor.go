package voteprog

import (
	"unicode/utf8"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.alpenglow.io/votor/pkg/accounts"
	"go.alpenglow.io/votor/pkg/cu"
	"go.alpenglow.io/votor/pkg/features"
	"go.alpenglow.io/votor/pkg/safemath"
)

// VoteProgramAddr is the address that owns all vote accounts.
var VoteProgramAddr = solana.VoteProgramID

// ExecutionEnv carries the per-slot context supplied by the host
// runtime. All of it is read-only during instruction execution except
// the compute meter.
type ExecutionEnv struct {
	Clock         SysvarClock
	SlotHashes    SysvarSlotHashes
	EpochSchedule SysvarEpochSchedule
	Rent          SysvarRent
	Features      features.Features
	ComputeMeter  *cu.ComputeMeter
}

// InstructionCtx is one decoded-but-unparsed vote program instruction:
// the vote account it operates on, the withdraw recipient when one is
// required, the keys that signed the enclosing transaction, and the
// raw instruction data.
type InstructionCtx struct {
	VoteAccount *accounts.Account
	Recipient   *accounts.Account
	Signers     []solana.PublicKey
	Data        []byte
}

func verifySigner(authorized solana.PublicKey, signers []solana.PublicKey) error {
	for _, signer := range signers {
		if signer == authorized {
			return nil
		}
	}
	return InstrErrMissingRequiredSignature
}

// setVoteAccountState re-encodes voteState into the account's data.
// Callers mutate a decoded copy and commit it here, so a failed
// operation never leaves a partially written record.
func setVoteAccountState(voteAcct *accounts.Account, voteState *VoteState) error {
	if len(voteAcct.Data) < VoteStateSize {
		return InstrErrInvalidAccountData
	}

	serialized, err := voteState.Marshal()
	if err != nil {
		return InstrErrInvalidAccountData
	}

	copy(voteAcct.Data, serialized)
	return nil
}

func VoteProgramExecute(env *ExecutionEnv, instrCtx *InstructionCtx) error {
	err := env.ComputeMeter.Consume(CUVoteProgramDefaultComputeUnits)
	if err != nil {
		return InstrErrComputationalBudgetExceeded
	}

	if instrCtx.VoteAccount == nil {
		return InstrErrNotEnoughAccountKeys
	}

	if solana.PublicKey(instrCtx.VoteAccount.Owner) != VoteProgramAddr {
		return InstrErrInvalidAccountOwner
	}

	decoder := bin.NewBinDecoder(instrCtx.Data)

	instructionType, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return InstrErrInvalidInstructionData
	}

	switch instructionType {
	case VoteProgramInstrTypeInitializeAccount:
		{
			var voteInit VoteInit
			err = voteInit.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			err = VoteProgramInitializeAccount(instrCtx.VoteAccount, voteInit, instrCtx.Signers, env.Clock, env.Rent)
		}

	case VoteProgramInstrTypeAuthorize:
		{
			var voteAuthorize VoteInstrVoteAuthorize
			err = voteAuthorize.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			err = VoteProgramAuthorize(instrCtx.VoteAccount, voteAuthorize.Pubkey, voteAuthorize.VoteAuthorize, instrCtx.Signers, env.Clock)
		}

	case VoteProgramInstrTypeAuthorizeChecked:
		{
			var voteAuthorize VoteInstrVoteAuthorize
			err = voteAuthorize.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			err = VoteProgramAuthorizeChecked(instrCtx.VoteAccount, voteAuthorize.Pubkey, voteAuthorize.VoteAuthorize, instrCtx.Signers, env.Clock)
		}

	case VoteProgramInstrTypeAuthorizeWithSeed:
		{
			var voteAuthWithSeed VoteInstrAuthorizeWithSeed
			err = voteAuthWithSeed.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			err = VoteProgramAuthorizeWithSeed(instrCtx.VoteAccount, &voteAuthWithSeed, instrCtx.Signers, env.Clock)
		}

	case VoteProgramInstrTypeAuthorizeCheckedWithSeed:
		{
			var voteAuthWithSeed VoteInstrAuthorizeWithSeed
			err = voteAuthWithSeed.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			err = VoteProgramAuthorizeCheckedWithSeed(instrCtx.VoteAccount, &voteAuthWithSeed, instrCtx.Signers, env.Clock)
		}

	// Fallback votes carry the same payload as their primary kind and
	// run the same pipeline.
	case VoteProgramInstrTypeNotarize, VoteProgramInstrTypeNotarizeFallback:
		{
			var notarize VoteInstrNotarize
			err = notarize.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			err = VoteProgramNotarize(instrCtx.VoteAccount, &notarize, instrCtx.Signers, env.Clock, &env.SlotHashes)
		}

	case VoteProgramInstrTypeFinalize:
		{
			var finalize VoteInstrFinalize
			err = finalize.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			err = VoteProgramFinalize(instrCtx.VoteAccount, &finalize, instrCtx.Signers, env.Clock, &env.SlotHashes)
		}

	case VoteProgramInstrTypeSkip, VoteProgramInstrTypeSkipFallback:
		{
			var skip VoteInstrSkip
			err = skip.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			err = VoteProgramSkip(instrCtx.VoteAccount, &skip, instrCtx.Signers, env.Clock, &env.SlotHashes, env.Features)
		}

	case VoteProgramInstrTypeWithdraw:
		{
			var withdraw VoteInstrWithdraw
			err = withdraw.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			if instrCtx.Recipient == nil {
				return InstrErrNotEnoughAccountKeys
			}

			err = VoteProgramWithdraw(instrCtx.VoteAccount, instrCtx.Recipient, withdraw.Lamports, instrCtx.Signers, env.Rent, env.Clock)
		}

	case VoteProgramInstrTypeUpdateValidatorIdentity:
		{
			var updateIdentity VoteInstrUpdateValidatorIdentity
			err = updateIdentity.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			err = VoteProgramUpdateValidatorIdentity(instrCtx.VoteAccount, updateIdentity.NodePubkey, instrCtx.Signers)
		}

	case VoteProgramInstrTypeUpdateCommission:
		{
			var updateCommission VoteInstrUpdateCommission
			err = updateCommission.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			err = VoteProgramUpdateCommission(instrCtx.VoteAccount, updateCommission.Commission, instrCtx.Signers, env.EpochSchedule, env.Clock, env.Features)
		}

	case VoteProgramInstrTypeCertificate:
		{
			var certificate VoteInstrCertificate
			err = certificate.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			err = VoteProgramCertificate(instrCtx.VoteAccount, &certificate, instrCtx.Signers, env.Clock)
		}

	default:
		err = InstrErrInvalidInstructionData
	}

	return err
}

func VoteProgramInitializeAccount(voteAcct *accounts.Account, voteInit VoteInit, signers []solana.PublicKey, clock SysvarClock, rent SysvarRent) error {
	if uint64(len(voteAcct.Data)) != VoteStateSize {
		return InstrErrInvalidAccountData
	}

	if !rent.IsExempt(voteAcct.Lamports, uint64(len(voteAcct.Data))) {
		return InstrErrInsufficientFunds
	}

	var existing VoteState
	decoder := bin.NewBinDecoder(voteAcct.Data)
	err := existing.UnmarshalWithDecoder(decoder)
	if err != nil {
		return InstrErrInvalidAccountData
	}
	if existing.IsInitialized() {
		return InstrErrAccountAlreadyInitialized
	}

	err = verifySigner(voteInit.NodePubkey, signers)
	if err != nil {
		return err
	}

	voteState := NewVoteStateFromInit(&voteInit, &clock)
	return setVoteAccountState(voteAcct, voteState)
}

func VoteProgramAuthorize(voteAcct *accounts.Account, authorized solana.PublicKey, voteAuthorize uint32, signers []solana.PublicKey, clock SysvarClock) error {
	voteState, err := UnmarshalVoteState(voteAcct.Data)
	if err != nil {
		return err
	}

	switch voteAuthorize {
	case VoteAuthorizeTypeVoter:
		{
			var authorizedWithdrawerSigner bool
			if verifySigner(voteState.AuthorizedWithdrawer, signers) == nil {
				authorizedWithdrawerSigner = true
			}

			targetEpoch, err := safemath.CheckedAddU64(clock.LeaderScheduleEpoch, 1)
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			err = voteState.SetNewAuthorizedVoter(authorized, clock.Epoch, targetEpoch, func(epochAuthorizedVoter solana.PublicKey) error {
				if authorizedWithdrawerSigner {
					return nil
				}
				return verifySigner(epochAuthorizedVoter, signers)
			})
			if err != nil {
				return err
			}
		}

	case VoteAuthorizeTypeWithdrawer:
		{
			err = verifySigner(voteState.AuthorizedWithdrawer, signers)
			if err != nil {
				return err
			}
			voteState.AuthorizedWithdrawer = authorized
		}

	default:
		return VoteErrInvalidAuthorizeType
	}

	return setVoteAccountState(voteAcct, voteState)
}

// VoteProgramAuthorizeChecked behaves like VoteProgramAuthorize with
// the additional requirement that the new authority must also sign.
func VoteProgramAuthorizeChecked(voteAcct *accounts.Account, authorized solana.PublicKey, voteAuthorize uint32, signers []solana.PublicKey, clock SysvarClock) error {
	err := verifySigner(authorized, signers)
	if err != nil {
		return err
	}

	return VoteProgramAuthorize(voteAcct, authorized, voteAuthorize, signers, clock)
}

// VoteProgramAuthorizeWithSeed authorizes a new voter or withdrawer
// where the current authority is a derived key. The base key must have
// signed; the authority presented to the authorize path is recomputed
// from base, seed, and owner rather than trusted from the message.
func VoteProgramAuthorizeWithSeed(voteAcct *accounts.Account, authWithSeed *VoteInstrAuthorizeWithSeed, signers []solana.PublicKey, clock SysvarClock) error {
	if !utf8.ValidString(authWithSeed.CurrentAuthorityDerivedKeySeed) {
		return InstrErrInvalidArgument
	}

	var expectedAuthorityKeys []solana.PublicKey

	if verifySigner(authWithSeed.CurrentAuthorityDerivedKeyBase, signers) == nil {
		authKey, err := solana.CreateWithSeed(
			authWithSeed.CurrentAuthorityDerivedKeyBase,
			authWithSeed.CurrentAuthorityDerivedKeySeed,
			authWithSeed.CurrentAuthorityDerivedKeyOwner)
		if err != nil {
			return err
		}
		expectedAuthorityKeys = append(expectedAuthorityKeys, authKey)
	}

	return VoteProgramAuthorize(voteAcct, authWithSeed.NewAuthority, authWithSeed.AuthorizationType, expectedAuthorityKeys, clock)
}

// VoteProgramAuthorizeCheckedWithSeed behaves like
// VoteProgramAuthorizeWithSeed with the additional requirement that
// the new authority must also sign.
func VoteProgramAuthorizeCheckedWithSeed(voteAcct *accounts.Account, authWithSeed *VoteInstrAuthorizeWithSeed, signers []solana.PublicKey, clock SysvarClock) error {
	err := verifySigner(authWithSeed.NewAuthority, signers)
	if err != nil {
		return err
	}

	return VoteProgramAuthorizeWithSeed(voteAcct, authWithSeed, signers, clock)
}

func VoteProgramNotarize(voteAcct *accounts.Account, notarize *VoteInstrNotarize, signers []solana.PublicKey, clock SysvarClock, slotHashes *SysvarSlotHashes) error {
	if notarize.Version != CurrentNotarizeVoteVersion {
		return VoteErrVersionMismatch
	}

	voteState, err := UnmarshalVoteState(voteAcct.Data)
	if err != nil {
		return err
	}

	voter := voteState.getAndUpdateAuthorizedVoter(clock.Epoch)
	err = verifySigner(voter, signers)
	if err != nil {
		return err
	}

	if notarize.Slot <= voteState.LatestNotarized.Slot {
		return VoteErrVoteTooOld
	}

	hash, ok := slotHashes.Get(notarize.Slot)
	if !ok {
		return VoteErrSlotHashesMissingKey
	}
	if solana.Hash(hash) != notarize.BankHash {
		return VoteErrReplayBankHashMismatch
	}

	if notarize.Timestamp != nil {
		err = voteState.processTimestamp(notarize.Slot, *notarize.Timestamp)
		if err != nil {
			return err
		}
	}

	latency := voteLatency(notarize.Slot, clock.Slot)
	voteState.recordCredits(clock.Epoch, CreditsForLatency(latency))
	voteState.LatestNotarized = BlockVote{Slot: notarize.Slot, BlockID: notarize.BlockID, BankHash: notarize.BankHash}
	voteState.pushRecentVote(notarize.Slot, latency)

	return setVoteAccountState(voteAcct, voteState)
}

func VoteProgramFinalize(voteAcct *accounts.Account, finalize *VoteInstrFinalize, signers []solana.PublicKey, clock SysvarClock, slotHashes *SysvarSlotHashes) error {
	voteState, err := UnmarshalVoteState(voteAcct.Data)
	if err != nil {
		return err
	}

	voter := voteState.getAndUpdateAuthorizedVoter(clock.Epoch)
	err = verifySigner(voter, signers)
	if err != nil {
		return err
	}

	if finalize.Slot <= voteState.LatestFinalized.Slot {
		return VoteErrVoteTooOld
	}

	hash, ok := slotHashes.Get(finalize.Slot)
	if !ok {
		return VoteErrSlotHashesMissingKey
	}
	if solana.Hash(hash) != finalize.BankHash {
		return VoteErrReplayBankHashMismatch
	}

	// A slot cannot be both finalized and attested as skipped.
	if voteState.LatestSkipRange.Contains(finalize.Slot) {
		return VoteErrSkipSlotRangeContainsFinalizationVote
	}

	latency := voteLatency(finalize.Slot, clock.Slot)
	voteState.recordCredits(clock.Epoch, CreditsForLatency(latency))
	voteState.LatestFinalized = BlockVote{Slot: finalize.Slot, BlockID: finalize.BlockID, BankHash: finalize.BankHash}
	voteState.pushRecentVote(finalize.Slot, latency)

	return setVoteAccountState(voteAcct, voteState)
}

func VoteProgramSkip(voteAcct *accounts.Account, skip *VoteInstrSkip, signers []solana.PublicKey, clock SysvarClock, slotHashes *SysvarSlotHashes, f features.Features) error {
	voteState, err := UnmarshalVoteState(voteAcct.Data)
	if err != nil {
		return err
	}

	voter := voteState.getAndUpdateAuthorizedVoter(clock.Epoch)
	err = verifySigner(voter, signers)
	if err != nil {
		return err
	}

	if skip.End < skip.Start {
		return VoteErrSkipEndSlotLowerThanSkipStartSlot
	}

	// A finalized slot of zero means nothing has been finalized yet.
	if voteState.LatestFinalized.Slot != 0 {
		if skip.Start <= voteState.LatestFinalized.Slot && voteState.LatestFinalized.Slot <= skip.End {
			return VoteErrSkipSlotRangeContainsFinalizationVote
		}
	}

	if skip.End >= clock.Slot {
		return VoteErrSkipSlotExceedsCurrentSlot
	}

	if skip.End <= voteState.LatestSkipRange.End {
		return VoteErrVoteTooOld
	}

	// Credits accrue only for the portion of the range not covered by
	// the previous skip vote, and only for slots that genuinely have
	// no entry in the slot hashes history. A slot with an entry landed
	// on this fork and was not skipped.
	newlyCovered := skip.Start
	if voteState.LatestSkipRange.End >= newlyCovered {
		newlyCovered = voteState.LatestSkipRange.End + 1
	}

	var earnedCredits uint64
	for slot := newlyCovered; slot <= skip.End; slot++ {
		if slotHashes.Contains(slot) {
			continue
		}
		earnedCredits = safemath.SaturatingAddU64(earnedCredits, CreditsForLatency(voteLatency(slot, clock.Slot)))
	}

	if earnedCredits > 0 && !f.IsActive(features.DisableSkipRangeCredits) {
		voteState.recordCredits(clock.Epoch, earnedCredits)
	}

	voteState.LatestSkipRange = SkipRange{Start: skip.Start, End: skip.End}

	return setVoteAccountState(voteAcct, voteState)
}

func VoteProgramWithdraw(voteAcct *accounts.Account, recipient *accounts.Account, lamports uint64, signers []solana.PublicKey, rent SysvarRent, clock SysvarClock) error {
	voteState, err := UnmarshalVoteState(voteAcct.Data)
	if err != nil {
		return err
	}

	err = verifySigner(voteState.AuthorizedWithdrawer, signers)
	if err != nil {
		return err
	}

	remainingBalance, err := safemath.CheckedSubU64(voteAcct.Lamports, lamports)
	if err != nil {
		return InstrErrInsufficientFunds
	}

	newRecipientBalance, err := safemath.CheckedAddU64(recipient.Lamports, lamports)
	if err != nil {
		return InstrErrArithmeticOverflow
	}

	// All checks precede the first mutation so a failed withdrawal
	// leaves both accounts untouched.
	if remainingBalance == 0 {
		// Credits earned in the current or previous epoch mean the
		// account is still actively voting and must not be closed.
		if safemath.SaturatingSubU64(clock.Epoch, voteState.EpochCredits.Epoch) < 2 {
			return VoteErrActiveVoteAccountClose
		}

		for i := range voteAcct.Data {
			voteAcct.Data[i] = 0
		}
	} else if !rent.IsExempt(remainingBalance, uint64(len(voteAcct.Data))) {
		return InstrErrInsufficientFunds
	}

	voteAcct.Lamports = remainingBalance
	recipient.Lamports = newRecipientBalance
	return nil
}

func VoteProgramUpdateValidatorIdentity(voteAcct *accounts.Account, nodePubkey solana.PublicKey, signers []solana.PublicKey) error {
	voteState, err := UnmarshalVoteState(voteAcct.Data)
	if err != nil {
		return err
	}

	err = verifySigner(voteState.AuthorizedWithdrawer, signers)
	if err != nil {
		return err
	}

	// The incoming identity signs too, proving possession of the key.
	err = verifySigner(nodePubkey, signers)
	if err != nil {
		return err
	}

	voteState.NodePubkey = nodePubkey
	return setVoteAccountState(voteAcct, voteState)
}

func isCommissionUpdateAllowed(slot uint64, epochSchedule SysvarEpochSchedule) bool {
	if epochSchedule.SlotsPerEpoch == 0 {
		return true
	}
	relativeSlot := safemath.SaturatingSubU64(slot, epochSchedule.FirstNormalSlot) % epochSchedule.SlotsPerEpoch
	return safemath.SaturatingMulU64(relativeSlot, 2) <= epochSchedule.SlotsPerEpoch
}

func VoteProgramUpdateCommission(voteAcct *accounts.Account, commission byte, signers []solana.PublicKey, epochSchedule SysvarEpochSchedule, clock SysvarClock, f features.Features) error {
	var voteState *VoteState

	var enforceCommissionUpdateRule bool
	if f.IsActive(features.AllowCommissionDecreaseAtAnyTime) {
		decoded, err := UnmarshalVoteState(voteAcct.Data)
		if err == nil {
			voteState = decoded
			if commission > voteState.Commission {
				enforceCommissionUpdateRule = true
			}
		} else {
			enforceCommissionUpdateRule = true
		}
	} else {
		enforceCommissionUpdateRule = true
	}

	if enforceCommissionUpdateRule && f.IsActive(features.CommissionUpdatesOnlyAllowedInFirstHalfOfEpoch) {
		if !isCommissionUpdateAllowed(clock.Slot, epochSchedule) {
			return VoteErrCommissionUpdateTooLate
		}
	}

	if voteState == nil {
		decoded, err := UnmarshalVoteState(voteAcct.Data)
		if err != nil {
			return err
		}
		voteState = decoded
	}

	err := verifySigner(voteState.AuthorizedWithdrawer, signers)
	if err != nil {
		return err
	}

	voteState.Commission = commission
	return setVoteAccountState(voteAcct, voteState)
}

// VoteProgramCertificate accepts a BLS certificate submission. Only
// the signer check is performed.
//
// TODO: implement certificate verification once the aggregation format
// is finalized.
func VoteProgramCertificate(voteAcct *accounts.Account, certificate *VoteInstrCertificate, signers []solana.PublicKey, clock SysvarClock) error {
	voteState, err := UnmarshalVoteState(voteAcct.Data)
	if err != nil {
		return err
	}

	voter := voteState.getAndUpdateAuthorizedVoter(clock.Epoch)
	err = verifySigner(voter, signers)
	if err != nil {
		return err
	}

	return setVoteAccountState(voteAcct, voteState)
}
