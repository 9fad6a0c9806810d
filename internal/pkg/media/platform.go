package media

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jake-scott/control4-bridge/internal/pkg/c4api"
	"github.com/jake-scott/control4-bridge/internal/pkg/coordinator"
	"github.com/jake-scott/control4-bridge/internal/pkg/director"
	"github.com/jake-scott/control4-bridge/internal/pkg/logging"
	"github.com/jake-scott/control4-bridge/internal/pkg/metrics"
)

const (
	PlatformRoom        = "room"
	PlatformMediaPlayer = "media_player"
)

// Director is what the platforms need from the director helper
type Director interface {
	Commander
	AllItems(ctx context.Context) (director.Items, error)
	UIConfiguration(ctx context.Context) (*c4api.UIConfiguration, error)
	VariablesForItems(ctx context.Context, varNames []string) (map[int]director.Variables, error)
}

// Project is the item list and UI configuration, read once at start up
type Project struct {
	Items           director.Items
	UIConfiguration *c4api.UIConfiguration
}

func LoadProject(ctx context.Context, d Director) (*Project, error) {
	items, err := d.AllItems(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "loading director items")
	}

	cfg, err := d.UIConfiguration(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "loading ui configuration")
	}

	return &Project{Items: items, UIConfiguration: cfg}, nil
}

// Platform is a set of players sharing one coordinator
type Platform struct {
	Name        string
	Coordinator *coordinator.Coordinator
	Players     []Player
}

func newCoordinator(ctx context.Context, name string, d Director, varNames []string, interval time.Duration) *coordinator.Coordinator {
	logging.Logger(ctx).Debugf("%s: scan interval = %s", name, interval)

	c := coordinator.New(name, interval, func(ctx context.Context) (map[int]director.Variables, error) {
		return d.VariablesForItems(ctx, varNames)
	})

	// entities start unavailable if the first poll fails
	if err := c.Refresh(ctx); err != nil {
		logging.Logger(ctx).WithError(err).Warnf("%s: initial poll failed", name)
	}

	return c
}

func logSkipped(ctx context.Context, platform string, item c4api.Item, missing string) {
	fields := logrus.Fields{
		"platform": platform,
		"name":     item.ItemName(),
		"typeName": item.TypeName,
	}
	if id, ok := item.ItemID(); ok {
		fields["id"] = id
	}

	logging.Logger(ctx).WithFields(fields).Errorf("unknown device properties received from Control4: missing %s", missing)
}

// SetupRooms builds a player for every room in the project.  It returns
// nil when the project has no rooms.
func SetupRooms(ctx context.Context, d Director, project *Project, interval time.Duration) *Platform {
	rooms := project.Items.OfType("room")
	if len(rooms) == 0 {
		return nil
	}

	c := newCoordinator(ctx, PlatformRoom, d, RoomVariables, interval)

	itemsByID := project.Items.ByID()
	parents := project.Items.ParentMap()

	p := &Platform{Name: PlatformRoom, Coordinator: c}
	for _, room := range rooms {
		id, ok := room.ItemID()
		if !ok {
			logSkipped(ctx, PlatformRoom, room, "id")
			continue
		}
		if room.Name == nil {
			logSkipped(ctx, PlatformRoom, room, "name")
			continue
		}
		if room.RoomHidden == nil {
			logSkipped(ctx, PlatformRoom, room, "roomHidden")
			continue
		}

		sources := BuildRoomSources(id, project.UIConfiguration, itemsByID)
		p.Players = append(p.Players, NewRoom(id, *room.Name, *room.RoomHidden, c, d, sources, parents))
	}

	metrics.Entities.WithLabelValues(PlatformRoom).Set(float64(len(p.Players)))
	logging.Logger(ctx).Infof("%s: set up %d entities", PlatformRoom, len(p.Players))

	return p
}

func isMediaDevice(item c4api.Item, proxies map[string]bool) bool {
	return item.TypeName == "device" && proxies[item.Proxy]
}

// SetupMediaPlayers builds a player for every AV device whose proxy is in
// proxies.  It returns nil when there are none.
func SetupMediaPlayers(ctx context.Context, d Director, project *Project, interval time.Duration, proxies []string) *Platform {
	if len(proxies) == 0 {
		proxies = DefaultMediaProxies
	}

	wanted := make(map[string]bool, len(proxies))
	for _, p := range proxies {
		wanted[p] = true
	}

	var devices director.Items
	for _, item := range project.Items {
		if isMediaDevice(item, wanted) {
			devices = append(devices, item)
		}
	}

	if len(devices) == 0 {
		return nil
	}

	c := newCoordinator(ctx, PlatformMediaPlayer, d, DeviceVariables, interval)

	p := &Platform{Name: PlatformMediaPlayer, Coordinator: c}
	for _, dev := range devices {
		id, ok := dev.ItemID()
		if !ok {
			logSkipped(ctx, PlatformMediaPlayer, dev, "id")
			continue
		}
		if dev.Name == nil {
			logSkipped(ctx, PlatformMediaPlayer, dev, "name")
			continue
		}

		p.Players = append(p.Players, NewMediaPlayer(id, *dev.Name, dev.RoomName, dev.Proxy, c, d))
	}

	metrics.Entities.WithLabelValues(PlatformMediaPlayer).Set(float64(len(p.Players)))
	logging.Logger(ctx).Infof("%s: set up %d entities", PlatformMediaPlayer, len(p.Players))

	return p
}
