package access

import (
	"errors"
	"testing"

	feedertypes "github.com/Nuklai/nuklai-contracts-bitcoin-form/types"
	"github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin           = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	forwarder       = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	forwarderSecond = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	user            = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

func newTestController(t *testing.T) *Controller {
	c, err := NewController(log.NewNopLogger(), admin)
	require.NoError(t, err)
	return c
}

func TestNewController(t *testing.T) {
	c := newTestController(t)
	assert.Equal(t, admin, c.Administrator())
	assert.Equal(t, common.Address{}, c.Forwarder())
	assert.False(t, c.Renounced())

	_, err := NewController(log.NewNopLogger(), common.Address{})
	assert.True(t, errors.Is(err, feedertypes.ErrInvalidArgument))
}

type entry struct {
	msg     string
	keyvals []interface{}
}

// recordLogger keeps Info entries
type recordLogger struct {
	log.Logger
	entries []entry
}

func (l *recordLogger) Info(msg string, keyvals ...interface{}) {
	l.entries = append(l.entries, entry{msg, keyvals})
}

func TestNewControllerLogsInitialAdministrator(t *testing.T) {
	logger := &recordLogger{Logger: log.NewNopLogger()}
	c, err := NewController(logger, admin)
	require.NoError(t, err)
	require.Len(t, logger.entries, 1)
	assert.Equal(t, entry{"administrator transferred", []interface{}{"previous", common.Address{}.Hex(), "new", admin.Hex()}}, logger.entries[0])

	// later transfers log the same way
	require.NoError(t, c.TransferAdministrator(admin, user))
	require.Len(t, logger.entries, 2)
	assert.Equal(t, entry{"administrator transferred", []interface{}{"previous", admin.Hex(), "new", user.Hex()}}, logger.entries[1])
}

func TestSetForwarder(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.SetForwarder(admin, forwarder))
	assert.Equal(t, forwarder, c.Forwarder())

	// reassignment is allowed
	require.NoError(t, c.SetForwarder(admin, forwarderSecond))
	assert.Equal(t, forwarderSecond, c.Forwarder())

	err := c.SetForwarder(user, forwarder)
	assert.True(t, errors.Is(err, feedertypes.ErrNotAuthorized))
	assert.Equal(t, forwarderSecond, c.Forwarder())

	// the forwarder holds no administrative rights
	err = c.SetForwarder(forwarderSecond, forwarder)
	assert.True(t, errors.Is(err, feedertypes.ErrNotAuthorized))
}

func TestTransferAdministrator(t *testing.T) {
	c := newTestController(t)
	events := make(chan feedertypes.OwnershipTransferred, 1)
	sub := c.SubscribeOwnershipTransferred(events)
	defer sub.Unsubscribe()

	err := c.TransferAdministrator(user, user)
	assert.True(t, errors.Is(err, feedertypes.ErrNotAuthorized))

	err = c.TransferAdministrator(admin, common.Address{})
	assert.True(t, errors.Is(err, feedertypes.ErrInvalidArgument))
	assert.Equal(t, admin, c.Administrator())
	assert.Len(t, events, 0)

	require.NoError(t, c.TransferAdministrator(admin, user))
	assert.Equal(t, user, c.Administrator())
	assert.Equal(t, feedertypes.OwnershipTransferred{Previous: admin, New: user}, <-events)

	// the previous administrator lost its rights
	err = c.SetForwarder(admin, forwarder)
	assert.True(t, errors.Is(err, feedertypes.ErrNotAuthorized))
	require.NoError(t, c.SetForwarder(user, forwarder))
}

func TestRenounceAdministrator(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.SetForwarder(admin, forwarder))

	events := make(chan feedertypes.OwnershipTransferred, 1)
	sub := c.SubscribeOwnershipTransferred(events)
	defer sub.Unsubscribe()

	err := c.RenounceAdministrator(user)
	assert.True(t, errors.Is(err, feedertypes.ErrNotAuthorized))

	require.NoError(t, c.RenounceAdministrator(admin))
	assert.Equal(t, feedertypes.OwnershipTransferred{Previous: admin, New: common.Address{}}, <-events)
	assert.Equal(t, common.Address{}, c.Administrator())
	assert.True(t, c.Renounced())

	// every administrator-gated call fails from now on, including from the zero address
	for _, caller := range []common.Address{admin, user, forwarder, {}} {
		assert.True(t, errors.Is(c.SetForwarder(caller, forwarderSecond), feedertypes.ErrNotAuthorized))
		assert.True(t, errors.Is(c.TransferAdministrator(caller, user), feedertypes.ErrNotAuthorized))
		assert.True(t, errors.Is(c.RenounceAdministrator(caller), feedertypes.ErrNotAuthorized))
	}
	assert.Equal(t, forwarder, c.Forwarder())
}

func TestRestoreController(t *testing.T) {
	c, err := RestoreController(log.NewNopLogger(), common.Address{}, true, forwarder)
	require.NoError(t, err)
	assert.True(t, c.Renounced())
	assert.Equal(t, forwarder, c.Forwarder())
	assert.True(t, errors.Is(c.SetForwarder(common.Address{}, user), feedertypes.ErrNotAuthorized))

	_, err = RestoreController(log.NewNopLogger(), admin, true, forwarder)
	assert.True(t, errors.Is(err, feedertypes.ErrInvalidArgument))
	_, err = RestoreController(log.NewNopLogger(), common.Address{}, false, forwarder)
	assert.True(t, errors.Is(err, feedertypes.ErrInvalidArgument))

	c, err = RestoreController(log.NewNopLogger(), admin, false, common.Address{})
	require.NoError(t, err)
	require.NoError(t, c.SetForwarder(admin, forwarder))
}
