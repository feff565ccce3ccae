package access

import (
	"fmt"
	"sync"

	feedertypes "github.com/Nuklai/nuklai-contracts-bitcoin-form/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

type adminState int

const (
	adminHeld adminState = iota
	adminRenounced
)

// Controller holds the administrator and the forwarder of a fetcher instance.
// The administrator may hand itself over, renounce itself for good, or designate the forwarder.
type Controller struct {
	logger feedertypes.LoggerInf
	locker *sync.RWMutex

	state     adminState
	admin     common.Address
	forwarder common.Address

	ownershipFeed event.Feed
}

// NewController returns a controller administered by admin with no forwarder set.
// Nobody can subscribe before the controller exists, so the initial transfer from the zero address is logged, not sent.
func NewController(logger feedertypes.LoggerInf, admin common.Address) (*Controller, error) {
	if admin == (common.Address{}) {
		return nil, feedertypes.ErrInvalidArgument.Wrap("administrator is the zero address")
	}
	logger.Info("administrator transferred", "previous", common.Address{}.Hex(), "new", admin.Hex())
	return &Controller{
		logger: logger,
		locker: new(sync.RWMutex),
		state:  adminHeld,
		admin:  admin,
	}, nil
}

// RestoreController rebuilds a controller from persisted roles, a renounced controller has no administrator
func RestoreController(logger feedertypes.LoggerInf, admin common.Address, renounced bool, forwarder common.Address) (*Controller, error) {
	c := &Controller{
		logger:    logger,
		locker:    new(sync.RWMutex),
		admin:     admin,
		forwarder: forwarder,
	}
	switch {
	case renounced && admin != (common.Address{}):
		return nil, feedertypes.ErrInvalidArgument.Wrap(fmt.Sprintf("renounced controller carries administrator:%s", admin.Hex()))
	case renounced:
		c.state = adminRenounced
	case admin == (common.Address{}):
		return nil, feedertypes.ErrInvalidArgument.Wrap("administrator is the zero address")
	default:
		c.state = adminHeld
	}
	return c, nil
}

// onlyAdministrator must be called with the write lock held
func (c *Controller) onlyAdministrator(caller common.Address) error {
	if c.state == adminRenounced {
		return feedertypes.ErrNotAuthorized.Wrap(fmt.Sprintf("administrator renounced, caller:%s", caller.Hex()))
	}
	if caller != c.admin {
		return feedertypes.ErrNotAuthorized.Wrap(fmt.Sprintf("caller:%s", caller.Hex()))
	}
	return nil
}

func (c *Controller) TransferAdministrator(caller, newAdmin common.Address) error {
	c.locker.Lock()
	if err := c.onlyAdministrator(caller); err != nil {
		c.locker.Unlock()
		return err
	}
	if newAdmin == (common.Address{}) {
		c.locker.Unlock()
		return feedertypes.ErrInvalidArgument.Wrap("new administrator is the zero address")
	}
	prev := c.admin
	c.admin = newAdmin
	c.locker.Unlock()

	c.logger.Info("administrator transferred", "previous", prev.Hex(), "new", newAdmin.Hex())
	c.ownershipFeed.Send(feedertypes.OwnershipTransferred{Previous: prev, New: newAdmin})
	return nil
}

// RenounceAdministrator leaves the controller without administrator, permanently.
// The forwarder set at that point can no longer be changed.
func (c *Controller) RenounceAdministrator(caller common.Address) error {
	c.locker.Lock()
	if err := c.onlyAdministrator(caller); err != nil {
		c.locker.Unlock()
		return err
	}
	prev := c.admin
	c.admin = common.Address{}
	c.state = adminRenounced
	c.locker.Unlock()

	c.logger.Info("administrator renounced", "previous", prev.Hex())
	c.ownershipFeed.Send(feedertypes.OwnershipTransferred{Previous: prev, New: common.Address{}})
	return nil
}

func (c *Controller) SetForwarder(caller, newForwarder common.Address) error {
	c.locker.Lock()
	if err := c.onlyAdministrator(caller); err != nil {
		c.locker.Unlock()
		return err
	}
	prev := c.forwarder
	c.forwarder = newForwarder
	c.locker.Unlock()

	c.logger.Info("forwarder updated", "previous", prev.Hex(), "new", newForwarder.Hex())
	return nil
}

func (c *Controller) Administrator() common.Address {
	c.locker.RLock()
	defer c.locker.RUnlock()
	return c.admin
}

func (c *Controller) Forwarder() common.Address {
	c.locker.RLock()
	defer c.locker.RUnlock()
	return c.forwarder
}

func (c *Controller) Renounced() bool {
	c.locker.RLock()
	defer c.locker.RUnlock()
	return c.state == adminRenounced
}

// SubscribeOwnershipTransferred registers ch for ownership events.
// Delivery blocks the emitting call until ch accepts, so ch should be buffered and drained.
func (c *Controller) SubscribeOwnershipTransferred(ch chan<- feedertypes.OwnershipTransferred) event.Subscription {
	return c.ownershipFeed.Subscribe(ch)
}
