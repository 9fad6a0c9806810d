package director

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jake-scott/control4-bridge/internal/pkg/c4api"
	"github.com/jake-scott/control4-bridge/internal/pkg/c4auth"
	"github.com/jake-scott/control4-bridge/internal/pkg/logging"
)

// Session supplies the token pair for each director call
type Session interface {
	Credentials() c4auth.Credentials
	Refresh(ctx context.Context, stale c4auth.Credentials) (c4auth.Credentials, error)
}

// Helper wraps director queries with one token refresh on auth failure
type Helper struct {
	session  Session
	director c4api.Director
}

func NewHelper(session Session, director c4api.Director) *Helper {
	return &Helper{session: session, director: director}
}

// Do runs fn against a director client built from the current token pair.
// If the director rejects the token, the pair is refreshed and fn runs once
// more; a second failure is returned as is.
func (h *Helper) Do(ctx context.Context, fn func(d c4api.Director) error) error {
	creds := h.session.Credentials()

	err := fn(h.director.WithBearerToken(creds.DirectorToken))
	if err == nil || !errors.Is(err, c4api.ErrUnauthorized) {
		return err
	}

	logging.Logger(ctx).WithError(err).Info("director rejected token, refreshing")

	fresh, rerr := h.session.Refresh(ctx, creds)
	if rerr != nil {
		return errors.Wrap(rerr, "refreshing tokens after director auth failure")
	}

	return fn(h.director.WithBearerToken(fresh.DirectorToken))
}

// VariablesForItems returns the named variables of every item that has
// them, keyed by item id and then variable name
func (h *Helper) VariablesForItems(ctx context.Context, varNames []string) (map[int]Variables, error) {
	var values []c4api.VariableValue
	err := h.Do(ctx, func(d c4api.Director) error {
		var err error
		values, err = d.AllItemVariableValues(ctx, varNames)
		return err
	})
	if err != nil {
		return nil, err
	}

	return reshape(values), nil
}

// VariablesForItem returns the named variables of one item
func (h *Helper) VariablesForItem(ctx context.Context, itemID int, varNames []string) (Variables, error) {
	var values []c4api.VariableValue
	err := h.Do(ctx, func(d c4api.Director) error {
		var err error
		values, err = d.ItemVariableValues(ctx, itemID, varNames)
		return err
	})
	if err != nil {
		return nil, err
	}

	vars := reshape(values)[itemID]
	if vars == nil {
		vars = Variables{}
	}

	return vars, nil
}

func (h *Helper) AllItems(ctx context.Context) (Items, error) {
	var items []c4api.Item
	err := h.Do(ctx, func(d c4api.Director) error {
		var err error
		items, err = d.AllItems(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	return Items(items), nil
}

func (h *Helper) ItemInfo(ctx context.Context, itemID int) (c4api.Item, error) {
	var items []c4api.Item
	err := h.Do(ctx, func(d c4api.Director) error {
		var err error
		items, err = d.ItemInfo(ctx, itemID)
		return err
	})
	if err != nil {
		return c4api.Item{}, err
	}

	if len(items) == 0 {
		return c4api.Item{}, errors.Wrapf(c4api.ErrNotFound, "item %d", itemID)
	}

	return items[0], nil
}

func (h *Helper) UIConfiguration(ctx context.Context) (*c4api.UIConfiguration, error) {
	var cfg *c4api.UIConfiguration
	err := h.Do(ctx, func(d c4api.Director) error {
		var err error
		cfg, err = d.UIConfiguration(ctx)
		return err
	})

	return cfg, err
}

// RoomCommand runs fn with a room command object built for this call
func (h *Helper) RoomCommand(ctx context.Context, roomID int, fn func(r *c4api.Room) error) error {
	return h.Do(ctx, func(d c4api.Director) error {
		return fn(c4api.NewRoom(d, roomID))
	})
}

// DeviceCommand runs fn with a device command object built for this call
func (h *Helper) DeviceCommand(ctx context.Context, deviceID int, fn func(dev *c4api.Device) error) error {
	return h.Do(ctx, func(d c4api.Director) error {
		return fn(c4api.NewDevice(d, deviceID))
	})
}
