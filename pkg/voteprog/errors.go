package voteprog

import (
	"errors"
)

// Instruction-level errors shared by all native program entry points.
var (
	InstrErrMissingRequiredSignature    = errors.New("missing required signature")
	InstrErrInvalidAccountData          = errors.New("invalid account data")
	InstrErrInvalidInstructionData      = errors.New("invalid instruction data")
	InstrErrInvalidAccountOwner         = errors.New("invalid account owner")
	InstrErrInsufficientFunds           = errors.New("insufficient funds")
	InstrErrAccountAlreadyInitialized   = errors.New("account already initialized")
	InstrErrArithmeticOverflow          = errors.New("arithmetic overflow")
	InstrErrNotEnoughAccountKeys        = errors.New("not enough account keys")
	InstrErrInvalidArgument             = errors.New("invalid argument")
	InstrErrComputationalBudgetExceeded = errors.New("computational budget exceeded")
	InstrErrUninitializedAccount        = errors.New("uninitialized account")
)

// Vote program specific errors.
var (
	VoteErrVoteTooOld                           = errors.New("vote already recorded or not in slot hashes history")
	VoteErrTimestampTooOld                      = errors.New("vote timestamp not recent")
	VoteErrTooSoonToReauthorize                 = errors.New("authorized voter has already been changed this epoch")
	VoteErrCommissionUpdateTooLate              = errors.New("cannot update commission at this point in the epoch")
	VoteErrSlotHashesMissingKey                 = errors.New("vote slot not present in slot hashes")
	VoteErrReplayBankHashMismatch               = errors.New("vote bank hash does not match replayed bank hash")
	VoteErrSkipEndSlotLowerThanSkipStartSlot    = errors.New("skip range end slot lower than start slot")
	VoteErrSkipSlotRangeContainsFinalizationVote = errors.New("skip range contains the latest finalized slot")
	VoteErrSkipSlotExceedsCurrentSlot           = errors.New("skip range extends beyond the current slot")
	VoteErrActiveVoteAccountClose               = errors.New("cannot close vote account unless it stopped voting at least one full epoch ago")
	VoteErrVersionMismatch                      = errors.New("vote version does not match the expected version")
	VoteErrInvalidAuthorizeType                 = errors.New("invalid authorize type")
)
