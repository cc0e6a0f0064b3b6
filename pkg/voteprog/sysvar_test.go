package voteprog

import (
	"bytes"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.alpenglow.io/votor/pkg/accounts"
)

func sysvarAccounts(t *testing.T, addr [32]byte, payload interface {
	MarshalWithEncoder(encoder *bin.Encoder) error
}) accounts.Accounts {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)
	require.NoError(t, payload.MarshalWithEncoder(encoder))

	accts := accounts.NewMemAccounts()
	require.NoError(t, accts.SetAccount(&addr, &accounts.Account{Key: addr, Data: buf.Bytes()}))
	return accts
}

func TestReadClockSysvar(t *testing.T) {
	clock := SysvarClock{Slot: 5000, EpochStartTimestamp: 1724300000, Epoch: 11, LeaderScheduleEpoch: 12, UnixTimestamp: 1724400000}
	accts := sysvarAccounts(t, SysvarClockAddr, &clock)

	decoded, err := ReadClockSysvar(accts)
	require.NoError(t, err)
	assert.Equal(t, clock, decoded)
}

func TestReadClockSysvar_MissingAccount(t *testing.T) {
	_, err := ReadClockSysvar(accounts.NewMemAccounts())
	assert.Error(t, err)
}

func TestReadRentSysvar(t *testing.T) {
	rent := testRent()
	accts := sysvarAccounts(t, SysvarRentAddr, &rent)

	decoded, err := ReadRentSysvar(accts)
	require.NoError(t, err)
	assert.Equal(t, rent, decoded)
}

func TestReadEpochScheduleSysvar(t *testing.T) {
	epochSchedule := testEpochSchedule()
	accts := sysvarAccounts(t, SysvarEpochScheduleAddr, &epochSchedule)

	decoded, err := ReadEpochScheduleSysvar(accts)
	require.NoError(t, err)
	assert.Equal(t, epochSchedule, decoded)
}

func TestReadSlotHashesSysvar(t *testing.T) {
	slotHashes := testSlotHashes(100, 101, 102)
	accts := sysvarAccounts(t, SysvarSlotHashesAddr, &slotHashes)

	decoded, err := ReadSlotHashesSysvar(accts)
	require.NoError(t, err)
	require.Equal(t, 3, decoded.Len())

	hash, ok := decoded.Get(101)
	require.True(t, ok)
	assert.Equal(t, hashForSlot(101), hash)

	newest, ok := decoded.Newest()
	require.True(t, ok)
	assert.Equal(t, uint64(102), newest)
}

func TestSlotHashes_EvictsOldestPastCap(t *testing.T) {
	var slotHashes SysvarSlotHashes
	for slot := uint64(1); slot <= SlotHashesMaxEntries+10; slot++ {
		slotHashes.Put(slot, hashForSlot(slot))
	}

	assert.Equal(t, SlotHashesMaxEntries, slotHashes.Len())
	assert.False(t, slotHashes.Contains(10))
	assert.True(t, slotHashes.Contains(11))
}

func TestRentMinimumBalance(t *testing.T) {
	rent := testRent()

	min := rent.MinimumBalance(VoteStateSize)
	assert.Equal(t, uint64((VoteStateSize+128)*3480*2), min)
	assert.True(t, rent.IsExempt(min, VoteStateSize))
	assert.False(t, rent.IsExempt(min-1, VoteStateSize))
}

func TestEpochScheduleSlotIndex(t *testing.T) {
	epochSchedule := testEpochSchedule()

	assert.Equal(t, uint64(0), epochSchedule.SlotIndexInEpoch(0))
	assert.Equal(t, uint64(5), epochSchedule.SlotIndexInEpoch(432005))
	assert.Equal(t, uint64(0), (&SysvarEpochSchedule{}).SlotIndexInEpoch(99))
}
