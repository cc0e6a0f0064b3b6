package voteprog

import (
	"bytes"
	"math/bits"

	"github.com/edwingeng/deque/v2"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.alpenglow.io/votor/pkg/safemath"
)

const CurrentVoteStateVersion = 1

const (
	PriorVotersCapacity = 32
	MaxRecentVotes      = 8
)

// VoteStateSize is the serialized size of a vote account record. The
// layout is fixed so storage can be allocated once at initialization.
const VoteStateSize = 1965

type PriorVoter struct {
	Pubkey     solana.PublicKey
	EpochStart uint64
	EpochEnd   uint64
}

// PriorVoters records past authorized voters and the epoch range each
// was active for, so that misbehavior under an old key can still be
// attributed. The buffer is a ring; once full, the oldest entry is
// silently overwritten.
type PriorVoters struct {
	Buf     [PriorVotersCapacity]PriorVoter
	Index   uint64
	IsEmpty bool
}

func NewPriorVoters() PriorVoters {
	return PriorVoters{Index: PriorVotersCapacity - 1, IsEmpty: true}
}

func (priorVoters *PriorVoters) Append(entry PriorVoter) {
	priorVoters.Index = (priorVoters.Index + 1) % PriorVotersCapacity
	priorVoters.Buf[priorVoters.Index] = entry
	priorVoters.IsEmpty = false
}

func (priorVoters *PriorVoters) Last() *PriorVoter {
	if priorVoters.IsEmpty {
		return nil
	}
	return &priorVoters.Buf[priorVoters.Index]
}

type EpochCredits struct {
	Epoch       uint64
	Credits     uint64
	PrevCredits uint64
}

// EarnedThisEpoch returns the credits accumulated within the tracked
// epoch. Credits and PrevCredits are running all-time totals.
func (epochCredits *EpochCredits) EarnedThisEpoch() uint64 {
	return epochCredits.Credits - epochCredits.PrevCredits
}

type BlockTimestamp struct {
	Slot      uint64
	Timestamp int64
}

type AuthorizedVoter struct {
	Epoch  uint64
	Pubkey solana.PublicKey
}

// BlockVote identifies a specific block and the bank hash observed
// when replaying it.
type BlockVote struct {
	Slot     uint64
	BlockID  solana.Hash
	BankHash solana.Hash
}

// SkipRange is an inclusive range of slots attested as having produced
// no block.
type SkipRange struct {
	Start uint64
	End   uint64
}

func (skipRange *SkipRange) Contains(slot uint64) bool {
	return slot >= skipRange.Start && slot <= skipRange.End
}

// LandedVote is one entry in the recent vote trail kept for
// diagnostics. Latency saturates at 255 slots.
type LandedVote struct {
	Latency byte
	Slot    uint64
}

type VoteState struct {
	Version              byte
	NodePubkey           solana.PublicKey
	AuthorizedWithdrawer solana.PublicKey
	Commission           byte
	AuthorizedVoter      AuthorizedVoter
	NextAuthorizedVoter  *AuthorizedVoter
	EpochCredits         EpochCredits
	LatestNotarized      BlockVote
	LatestFinalized      BlockVote
	LatestSkipRange      SkipRange
	LastTimestamp        BlockTimestamp
	PriorVoters          PriorVoters
	Votes                *deque.Deque[LandedVote]
}

type VoteInit struct {
	NodePubkey           solana.PublicKey
	AuthorizedVoter      solana.PublicKey
	AuthorizedWithdrawer solana.PublicKey
	Commission           byte
}

func NewVoteStateFromInit(voteInit *VoteInit, clock *SysvarClock) *VoteState {
	return &VoteState{
		Version:              CurrentVoteStateVersion,
		NodePubkey:           voteInit.NodePubkey,
		AuthorizedWithdrawer: voteInit.AuthorizedWithdrawer,
		Commission:           voteInit.Commission,
		AuthorizedVoter:      AuthorizedVoter{Epoch: clock.Epoch, Pubkey: voteInit.AuthorizedVoter},
		EpochCredits:         EpochCredits{Epoch: clock.Epoch},
		PriorVoters:          NewPriorVoters(),
		Votes:                deque.NewDeque[LandedVote](),
	}
}

func (voteState *VoteState) IsInitialized() bool {
	return voteState.Version != 0
}

func (priorVoter *PriorVoter) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	pk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(priorVoter.Pubkey[:], pk)

	priorVoter.EpochStart, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	priorVoter.EpochEnd, err = decoder.ReadUint64(bin.LE)
	return err
}

func (priorVoter *PriorVoter) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteBytes(priorVoter.Pubkey[:], false)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(priorVoter.EpochStart, bin.LE)
	if err != nil {
		return err
	}

	return encoder.WriteUint64(priorVoter.EpochEnd, bin.LE)
}

func (priorVoters *PriorVoters) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	for count := 0; count < PriorVotersCapacity; count++ {
		var priorVoter PriorVoter
		err = priorVoter.UnmarshalWithDecoder(decoder)
		if err != nil {
			return err
		}
		priorVoters.Buf[count] = priorVoter
	}

	priorVoters.Index, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	priorVoters.IsEmpty, err = decoder.ReadBool()
	return err
}

func (priorVoters *PriorVoters) MarshalWithEncoder(encoder *bin.Encoder) error {
	var err error
	for count := 0; count < PriorVotersCapacity; count++ {
		err = priorVoters.Buf[count].MarshalWithEncoder(encoder)
		if err != nil {
			return err
		}
	}

	err = encoder.WriteUint64(priorVoters.Index, bin.LE)
	if err != nil {
		return err
	}

	return encoder.WriteBool(priorVoters.IsEmpty)
}

func (epochCredits *EpochCredits) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	epochCredits.Epoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	epochCredits.Credits, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	epochCredits.PrevCredits, err = decoder.ReadUint64(bin.LE)
	return err
}

func (epochCredits *EpochCredits) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint64(epochCredits.Epoch, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(epochCredits.Credits, bin.LE)
	if err != nil {
		return err
	}

	return encoder.WriteUint64(epochCredits.PrevCredits, bin.LE)
}

func (blockTimestamp *BlockTimestamp) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	blockTimestamp.Slot, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	blockTimestamp.Timestamp, err = decoder.ReadInt64(bin.LE)
	return err
}

func (blockTimestamp *BlockTimestamp) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint64(blockTimestamp.Slot, bin.LE)
	if err != nil {
		return err
	}

	return encoder.WriteInt64(blockTimestamp.Timestamp, bin.LE)
}

func (authVoter *AuthorizedVoter) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	authVoter.Epoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	pk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(authVoter.Pubkey[:], pk)
	return nil
}

func (authVoter *AuthorizedVoter) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint64(authVoter.Epoch, bin.LE)
	if err != nil {
		return err
	}

	return encoder.WriteBytes(authVoter.Pubkey[:], false)
}

func (blockVote *BlockVote) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	blockVote.Slot, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	blockId, err := decoder.ReadBytes(32)
	if err != nil {
		return err
	}
	copy(blockVote.BlockID[:], blockId)

	bankHash, err := decoder.ReadBytes(32)
	if err != nil {
		return err
	}
	copy(blockVote.BankHash[:], bankHash)
	return nil
}

func (blockVote *BlockVote) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint64(blockVote.Slot, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteBytes(blockVote.BlockID[:], false)
	if err != nil {
		return err
	}

	return encoder.WriteBytes(blockVote.BankHash[:], false)
}

func (skipRange *SkipRange) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	skipRange.Start, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	skipRange.End, err = decoder.ReadUint64(bin.LE)
	return err
}

func (skipRange *SkipRange) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint64(skipRange.Start, bin.LE)
	if err != nil {
		return err
	}

	return encoder.WriteUint64(skipRange.End, bin.LE)
}

func (landedVote *LandedVote) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	landedVote.Latency, err = decoder.ReadByte()
	if err != nil {
		return err
	}

	landedVote.Slot, err = decoder.ReadUint64(bin.LE)
	return err
}

func (landedVote *LandedVote) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteByte(landedVote.Latency)
	if err != nil {
		return err
	}

	return encoder.WriteUint64(landedVote.Slot, bin.LE)
}

func (voteState *VoteState) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	version, err := decoder.ReadByte()
	if err != nil {
		return err
	}
	voteState.Version = version

	nodePk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(voteState.NodePubkey[:], nodePk)

	withdrawerPk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(voteState.AuthorizedWithdrawer[:], withdrawerPk)

	voteState.Commission, err = decoder.ReadByte()
	if err != nil {
		return err
	}

	err = voteState.AuthorizedVoter.UnmarshalWithDecoder(decoder)
	if err != nil {
		return err
	}

	hasNextVoter, err := decoder.ReadBool()
	if err != nil {
		return err
	}
	var nextVoter AuthorizedVoter
	err = nextVoter.UnmarshalWithDecoder(decoder)
	if err != nil {
		return err
	}
	if hasNextVoter {
		voteState.NextAuthorizedVoter = &nextVoter
	} else {
		voteState.NextAuthorizedVoter = nil
	}

	err = voteState.EpochCredits.UnmarshalWithDecoder(decoder)
	if err != nil {
		return err
	}

	err = voteState.LatestNotarized.UnmarshalWithDecoder(decoder)
	if err != nil {
		return err
	}

	err = voteState.LatestFinalized.UnmarshalWithDecoder(decoder)
	if err != nil {
		return err
	}

	err = voteState.LatestSkipRange.UnmarshalWithDecoder(decoder)
	if err != nil {
		return err
	}

	err = voteState.LastTimestamp.UnmarshalWithDecoder(decoder)
	if err != nil {
		return err
	}

	err = voteState.PriorVoters.UnmarshalWithDecoder(decoder)
	if err != nil {
		return err
	}

	numVotes, err := decoder.ReadByte()
	if err != nil {
		return err
	}
	if numVotes > MaxRecentVotes {
		return InstrErrInvalidAccountData
	}
	voteState.Votes = deque.NewDeque[LandedVote]()
	for count := 0; count < MaxRecentVotes; count++ {
		var landedVote LandedVote
		err = landedVote.UnmarshalWithDecoder(decoder)
		if err != nil {
			return err
		}
		if count < int(numVotes) {
			voteState.Votes.PushBack(landedVote)
		}
	}
	return nil
}

func (voteState *VoteState) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteByte(voteState.Version)
	if err != nil {
		return err
	}

	err = encoder.WriteBytes(voteState.NodePubkey[:], false)
	if err != nil {
		return err
	}

	err = encoder.WriteBytes(voteState.AuthorizedWithdrawer[:], false)
	if err != nil {
		return err
	}

	err = encoder.WriteByte(voteState.Commission)
	if err != nil {
		return err
	}

	err = voteState.AuthorizedVoter.MarshalWithEncoder(encoder)
	if err != nil {
		return err
	}

	err = encoder.WriteBool(voteState.NextAuthorizedVoter != nil)
	if err != nil {
		return err
	}
	var nextVoter AuthorizedVoter
	if voteState.NextAuthorizedVoter != nil {
		nextVoter = *voteState.NextAuthorizedVoter
	}
	err = nextVoter.MarshalWithEncoder(encoder)
	if err != nil {
		return err
	}

	err = voteState.EpochCredits.MarshalWithEncoder(encoder)
	if err != nil {
		return err
	}

	err = voteState.LatestNotarized.MarshalWithEncoder(encoder)
	if err != nil {
		return err
	}

	err = voteState.LatestFinalized.MarshalWithEncoder(encoder)
	if err != nil {
		return err
	}

	err = voteState.LatestSkipRange.MarshalWithEncoder(encoder)
	if err != nil {
		return err
	}

	err = voteState.LastTimestamp.MarshalWithEncoder(encoder)
	if err != nil {
		return err
	}

	err = voteState.PriorVoters.MarshalWithEncoder(encoder)
	if err != nil {
		return err
	}

	err = encoder.WriteByte(byte(voteState.Votes.Len()))
	if err != nil {
		return err
	}
	voteState.Votes.Range(func(i int, landedVote LandedVote) bool {
		err = landedVote.MarshalWithEncoder(encoder)
		return err == nil
	})
	if err != nil {
		return err
	}
	var pad LandedVote
	for count := voteState.Votes.Len(); count < MaxRecentVotes; count++ {
		err = pad.MarshalWithEncoder(encoder)
		if err != nil {
			return err
		}
	}
	return nil
}

// UnmarshalVoteState decodes a vote account record, rejecting records
// that are uninitialized or of an unknown version.
func UnmarshalVoteState(data []byte) (*VoteState, error) {
	if len(data) < VoteStateSize {
		return nil, InstrErrInvalidAccountData
	}

	voteState := new(VoteState)
	decoder := bin.NewBinDecoder(data)
	err := voteState.UnmarshalWithDecoder(decoder)
	if err != nil {
		return nil, InstrErrInvalidAccountData
	}

	if !voteState.IsInitialized() {
		return nil, InstrErrUninitializedAccount
	}
	if voteState.Version != CurrentVoteStateVersion {
		return nil, InstrErrInvalidAccountData
	}
	return voteState, nil
}

func (voteState *VoteState) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)
	err := voteState.MarshalWithEncoder(encoder)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// recordCredits books amount credits earned during epoch. Credits is a
// running all-time total; when a new epoch is first observed, the old
// total rolls into PrevCredits before the award is added.
func (voteState *VoteState) recordCredits(epoch uint64, amount uint64) {
	epochCredits := &voteState.EpochCredits
	if epoch == epochCredits.Epoch {
		epochCredits.Credits = safemath.SaturatingAddU64(epochCredits.Credits, amount)
		return
	}

	prevCredits := safemath.SaturatingAddU64(epochCredits.PrevCredits, epochCredits.Credits)
	epochCredits.Epoch = epoch
	epochCredits.PrevCredits = prevCredits
	epochCredits.Credits = safemath.SaturatingAddU64(prevCredits, amount)
}

// pushRecentVote appends to the bounded diagnostic trail of landed
// votes, evicting the oldest entry once the trail is full.
func (voteState *VoteState) pushRecentVote(slot uint64, latency uint64) {
	if latency > 255 {
		latency = 255
	}
	if voteState.Votes == nil {
		voteState.Votes = deque.NewDeque[LandedVote]()
	}
	for voteState.Votes.Len() >= MaxRecentVotes {
		voteState.Votes.PopFront()
	}
	voteState.Votes.PushBack(LandedVote{Latency: byte(latency), Slot: slot})
}

// GetAuthorizedVoter returns the voter authorized for epoch, preferring
// a scheduled next voter whose activation epoch has been reached.
func (voteState *VoteState) GetAuthorizedVoter(epoch uint64) (solana.PublicKey, bool) {
	if voteState.NextAuthorizedVoter != nil && epoch >= voteState.NextAuthorizedVoter.Epoch {
		return voteState.NextAuthorizedVoter.Pubkey, true
	}
	if epoch >= voteState.AuthorizedVoter.Epoch {
		return voteState.AuthorizedVoter.Pubkey, true
	}
	return solana.PublicKey{}, false
}

// getAndUpdateAuthorizedVoter resolves the voter active at currentEpoch
// and settles any scheduled rotation that has come due: a next voter
// whose activation epoch has arrived is promoted, and the active
// voter's recorded epoch is advanced to currentEpoch.
func (voteState *VoteState) getAndUpdateAuthorizedVoter(currentEpoch uint64) solana.PublicKey {
	if voteState.NextAuthorizedVoter != nil && currentEpoch >= voteState.NextAuthorizedVoter.Epoch {
		voteState.AuthorizedVoter = *voteState.NextAuthorizedVoter
		voteState.NextAuthorizedVoter = nil
	}
	if currentEpoch > voteState.AuthorizedVoter.Epoch {
		voteState.AuthorizedVoter.Epoch = currentEpoch
	}
	return voteState.AuthorizedVoter.Pubkey
}

// SetNewAuthorizedVoter schedules newAuthorized to take over voting
// from targetEpoch. The verify callback is invoked with the voter
// currently in control; its error is propagated unchanged. When the
// voter key actually changes, the outgoing voter is recorded in the
// prior-voters ring with the epoch range it was active for.
func (voteState *VoteState) SetNewAuthorizedVoter(newAuthorized solana.PublicKey, currentEpoch uint64, targetEpoch uint64, verify func(epochAuthorizedVoter solana.PublicKey) error) error {
	activeVoter := voteState.getAndUpdateAuthorizedVoter(currentEpoch)

	err := verify(activeVoter)
	if err != nil {
		return err
	}

	// One rotation per epoch. A second schedule at or before an epoch
	// already claimed by the current or pending voter is rejected.
	if targetEpoch <= voteState.AuthorizedVoter.Epoch {
		return VoteErrTooSoonToReauthorize
	}
	if voteState.NextAuthorizedVoter != nil && targetEpoch <= voteState.NextAuthorizedVoter.Epoch {
		return VoteErrTooSoonToReauthorize
	}

	latestVoter := voteState.AuthorizedVoter
	if voteState.NextAuthorizedVoter != nil {
		latestVoter = *voteState.NextAuthorizedVoter
	}

	if newAuthorized != latestVoter.Pubkey {
		epochOfLastAuthorizedSwitch := uint64(0)
		if last := voteState.PriorVoters.Last(); last != nil {
			epochOfLastAuthorizedSwitch = last.EpochEnd
		}

		if targetEpoch <= latestVoter.Epoch {
			return InstrErrInvalidAccountData
		}

		voteState.PriorVoters.Append(PriorVoter{
			Pubkey:     latestVoter.Pubkey,
			EpochStart: epochOfLastAuthorizedSwitch,
			EpochEnd:   targetEpoch,
		})
	}

	voteState.NextAuthorizedVoter = &AuthorizedVoter{Epoch: targetEpoch, Pubkey: newAuthorized}
	return nil
}

// processTimestamp records a vote timestamp, enforcing that (slot,
// timestamp) pairs never move backwards. A slot of zero on the last
// recorded timestamp means no timestamp has been recorded yet.
func (voteState *VoteState) processTimestamp(slot uint64, timestamp int64) error {
	last := voteState.LastTimestamp
	sameVote := slot == last.Slot && timestamp == last.Timestamp

	if (slot < last.Slot || timestamp < last.Timestamp) ||
		(slot == last.Slot && !sameVote && last.Slot != 0) {
		return VoteErrTimestampTooOld
	}

	voteState.LastTimestamp = BlockTimestamp{Slot: slot, Timestamp: timestamp}
	return nil
}

// CommissionSplit divides total between the operator and delegators.
// A commission of 0 or 100 assigns everything to one side and reports
// wasSplit false. Otherwise each share is computed independently by
// flooring, so neither side benefits from rounding; at most one unit
// is discarded.
func (voteState *VoteState) CommissionSplit(total uint64) (operator uint64, delegator uint64, wasSplit bool) {
	commission := voteState.Commission
	if commission > 100 {
		commission = 100
	}

	switch commission {
	case 0:
		return 0, total, false
	case 100:
		return total, 0, false
	}

	operator = mulDiv100(total, uint64(commission))
	delegator = mulDiv100(total, uint64(100-commission))
	return operator, delegator, true
}

// mulDiv100 computes floor(amount * pct / 100) without overflowing in
// the intermediate product. pct is at most 100, so the 128-bit
// quotient always fits in 64 bits.
func mulDiv100(amount uint64, pct uint64) uint64 {
	hi, lo := bits.Mul64(amount, pct)
	quotient, _ := bits.Div64(hi, lo, 100)
	return quotient
}
