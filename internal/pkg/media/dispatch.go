package media

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/jake-scott/control4-bridge/internal/pkg/metrics"
)

const (
	CmdTurnOn         = "turn_on"
	CmdTurnOff        = "turn_off"
	CmdVolumeSet      = "volume_set"
	CmdVolumeMute     = "volume_mute"
	CmdVolumeUp       = "volume_up"
	CmdVolumeDown     = "volume_down"
	CmdSelectSource   = "select_source"
	CmdMediaPlay      = "media_play"
	CmdMediaPause     = "media_pause"
	CmdMediaStop      = "media_stop"
	CmdMediaPlayPause = "media_play_pause"
)

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrMissingArgument = errors.New("missing command argument")
)

// Command is a user action aimed at one player
type Command struct {
	Name   string   `json:"command"`
	Volume *float64 `json:"volume,omitempty"`
	Mute   *bool    `json:"mute,omitempty"`
	Source string   `json:"source,omitempty"`
}

var commandFeatures = map[string]Feature{
	CmdTurnOn:         FeatureTurnOn,
	CmdTurnOff:        FeatureTurnOff,
	CmdVolumeSet:      FeatureVolumeSet,
	CmdVolumeMute:     FeatureVolumeMute,
	CmdVolumeUp:       FeatureVolumeStep,
	CmdVolumeDown:     FeatureVolumeStep,
	CmdSelectSource:   FeatureSelectSource,
	CmdMediaPlay:      FeaturePlay,
	CmdMediaPause:     FeaturePause,
	CmdMediaStop:      FeatureStop,
	CmdMediaPlayPause: FeaturePlay | FeaturePause,
}

// Dispatch runs cmd against p.  origin labels the command metric (api,
// mqtt).
func Dispatch(ctx context.Context, p Player, cmd Command, origin string) error {
	err := dispatch(ctx, p, cmd)
	metrics.Commands.WithLabelValues(cmd.Name, origin, metrics.Result(err)).Inc()

	if err != nil {
		return errors.Wrapf(err, "%s on %s", cmd.Name, p.Name())
	}

	return nil
}

func dispatch(ctx context.Context, p Player, cmd Command) error {
	feature, ok := commandFeatures[cmd.Name]
	if !ok {
		return ErrUnknownCommand
	}
	if !p.SupportedFeatures().Has(feature) {
		return ErrNotSupported
	}

	switch cmd.Name {
	case CmdTurnOn:
		return p.TurnOn(ctx)
	case CmdTurnOff:
		return p.TurnOff(ctx)
	case CmdVolumeSet:
		if cmd.Volume == nil {
			return errors.Wrap(ErrMissingArgument, "volume")
		}
		return p.SetVolumeLevel(ctx, *cmd.Volume)
	case CmdVolumeMute:
		if cmd.Mute == nil {
			return p.ToggleMute(ctx)
		}
		return p.MuteVolume(ctx, *cmd.Mute)
	case CmdVolumeUp:
		return p.VolumeUp(ctx)
	case CmdVolumeDown:
		return p.VolumeDown(ctx)
	case CmdSelectSource:
		if cmd.Source == "" {
			return errors.Wrap(ErrMissingArgument, "source")
		}
		return p.SelectSource(ctx, cmd.Source)
	case CmdMediaPlay:
		return p.MediaPlay(ctx)
	case CmdMediaPause:
		return p.MediaPause(ctx)
	case CmdMediaStop:
		return p.MediaStop(ctx)
	case CmdMediaPlayPause:
		return p.MediaPlayPause(ctx)
	}

	return ErrUnknownCommand
}

// Snapshot is the serialisable view of a player
type Snapshot struct {
	EntityID          string      `json:"entity_id"`
	ItemID            int         `json:"item_id"`
	Platform          string      `json:"platform"`
	Name              string      `json:"name"`
	Available         bool        `json:"available"`
	EnabledByDefault  bool        `json:"enabled_by_default"`
	State             State       `json:"state"`
	VolumeLevel       *float64    `json:"volume_level,omitempty"`
	IsVolumeMuted     bool        `json:"is_volume_muted"`
	Source            string      `json:"source,omitempty"`
	SourceList        []string    `json:"source_list,omitempty"`
	MediaContentType  ContentType `json:"media_content_type,omitempty"`
	SupportedFeatures []string    `json:"supported_features"`
	DeviceInfo        DeviceInfo  `json:"device_info"`
}

func TakeSnapshot(p Player) Snapshot {
	s := Snapshot{
		EntityID:          p.UniqueID(),
		ItemID:            p.ItemID(),
		Platform:          p.Platform(),
		Name:              p.Name(),
		Available:         p.Available(),
		EnabledByDefault:  p.EnabledByDefault(),
		State:             p.State(),
		IsVolumeMuted:     p.IsVolumeMuted(),
		Source:            p.Source(),
		SourceList:        p.SourceList(),
		MediaContentType:  p.MediaContentType(),
		SupportedFeatures: p.SupportedFeatures().Names(),
		DeviceInfo:        p.DeviceInfo(),
	}

	if v, ok := p.VolumeLevel(); ok {
		s.VolumeLevel = &v
	}

	return s
}

// Registry indexes the players of all platforms by entity id
type Registry struct {
	mu        sync.RWMutex
	players   map[string]Player
	platforms []*Platform
}

func NewRegistry() *Registry {
	return &Registry{players: map[string]Player{}}
}

// Add registers a platform's players.  A nil platform is ignored.
func (r *Registry) Add(p *Platform) {
	if p == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.platforms = append(r.platforms, p)
	for _, pl := range p.Players {
		r.players[pl.UniqueID()] = pl
	}
}

func (r *Registry) Get(entityID string) (Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.players[entityID]
	return p, ok
}

// All returns the players ordered by item id
func (r *Registry) All() []Player {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ItemID() < out[j].ItemID()
	})

	return out
}

func (r *Registry) Platforms() []*Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]*Platform(nil), r.platforms...)
}
