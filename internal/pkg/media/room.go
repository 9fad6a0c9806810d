package media

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/jake-scott/control4-bridge/internal/pkg/c4api"
	"github.com/jake-scott/control4-bridge/internal/pkg/director"
	"github.com/jake-scott/control4-bridge/internal/pkg/logging"
)

const (
	VarPowerState            = "POWER_STATE"
	VarCurrentVolume         = "CURRENT_VOLUME"
	VarIsMuted               = "IS_MUTED"
	VarCurrentAudioDevice    = "CURRENT_AUDIO_DEVICE"
	VarCurrentVideoDevice    = "CURRENT_VIDEO_DEVICE"
	VarCurrentSelectedDevice = "CURRENT_SELECTED_DEVICE"
	VarPlaying               = "PLAYING"
	VarPaused                = "PAUSED"
	VarStopped               = "STOPPED"
)

// RoomVariables are polled for every item by the room coordinator
var RoomVariables = []string{
	VarPowerState,
	VarCurrentVolume,
	VarIsMuted,
	VarCurrentAudioDevice,
	VarCurrentVideoDevice,
	VarCurrentSelectedDevice,
	VarPlaying,
	VarPaused,
	VarStopped,
}

const roomFeatures = FeaturePlay | FeaturePause | FeatureStop |
	FeatureVolumeMute | FeatureVolumeSet | FeatureVolumeStep |
	FeatureTurnOff | FeatureTurnOn | FeatureSelectSource | FeatureGrouping

// DataSource is the polled variable cache an entity reads from
type DataSource interface {
	Data() map[int]director.Variables
	LastUpdateSuccess() bool
	RequestRefresh()
}

// Room is a media player for a Control4 room
type Room struct {
	id        int
	name      string
	hidden    bool
	data      DataSource
	commander Commander
	sources   map[int]*RoomSource
	parents   map[int]int

	mu     sync.Mutex
	softOn bool
}

func NewRoom(id int, name string, hidden bool, data DataSource, commander Commander,
	sources map[int]*RoomSource, parents map[int]int) *Room {
	return &Room{
		id:        id,
		name:      name,
		hidden:    hidden,
		data:      data,
		commander: commander,
		sources:   sources,
		parents:   parents,
	}
}

func (r *Room) UniqueID() string {
	return strconv.Itoa(r.id)
}

func (r *Room) ItemID() int {
	return r.id
}

func (r *Room) Name() string {
	return r.name
}

func (r *Room) Platform() string {
	return PlatformRoom
}

func (r *Room) EnabledByDefault() bool {
	return !r.hidden
}

func (r *Room) DeviceInfo() DeviceInfo {
	return DeviceInfo{
		Identifier:   r.UniqueID(),
		Name:         fmt.Sprintf("Control4 Room - %s", r.name),
		Manufacturer: "Control4",
		Model:        "Control4 Room",
	}
}

func (r *Room) SupportedFeatures() Feature {
	return roomFeatures
}

func (r *Room) Available() bool {
	return r.data.LastUpdateSuccess()
}

func (r *Room) vars(data map[int]director.Variables) director.Variables {
	if v := data[r.id]; v != nil {
		return v
	}
	return director.Variables{}
}

// deviceFromVariable reads a device id variable; 0 means no device
func (r *Room) deviceFromVariable(data map[int]director.Variables, name string) (int, bool) {
	id, ok := r.vars(data).Int(name)
	if !ok || id == 0 {
		return 0, false
	}
	return id, true
}

// sourceState walks from the selected device up through its parents and
// returns the first playback state found.  The walk visits at most one
// more item than the parent map holds, so a cycle cannot trap it.
func (r *Room) sourceState(data map[int]director.Variables) (State, bool) {
	id, ok := r.deviceFromVariable(data, VarCurrentSelectedDevice)

	for steps := 0; ok && steps <= len(r.parents); steps++ {
		if vars := data[id]; vars != nil {
			switch {
			case vars.Truthy(VarPlaying):
				return StatePlaying, true
			case vars.Truthy(VarPaused):
				return StatePaused, true
			case vars.Truthy(VarStopped):
				return StateOn, true
			}
		}

		id, ok = r.parents[id]
		ok = ok && id != 0
	}

	return "", false
}

func (r *Room) State() State {
	data := r.data.Data()

	if s, ok := r.sourceState(data); ok {
		return s
	}

	if r.vars(data).Truthy(VarPowerState) {
		return StateOn
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.softOn {
		return StateIdle
	}

	return StateOff
}

func (r *Room) VolumeLevel() (float64, bool) {
	level, ok := r.vars(r.data.Data()).Float(VarCurrentVolume)
	if !ok {
		return 0, false
	}
	return FromDirectorVolume(level), true
}

func (r *Room) IsVolumeMuted() bool {
	return r.vars(r.data.Data()).Truthy(VarIsMuted)
}

func (r *Room) Source() string {
	id, ok := r.deviceFromVariable(r.data.Data(), VarCurrentSelectedDevice)
	if !ok {
		return ""
	}

	if src, ok := r.sources[id]; ok {
		return src.Name
	}

	return ""
}

func (r *Room) SourceList() []string {
	sources := sortedSources(r.sources)
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name
	}

	return names
}

func (r *Room) MediaContentType() ContentType {
	data := r.data.Data()

	selected, ok := r.deviceFromVariable(data, VarCurrentSelectedDevice)
	if !ok {
		return ContentNone
	}

	if video, ok := r.deviceFromVariable(data, VarCurrentVideoDevice); ok && video == selected {
		return ContentMovie
	}

	return ContentMusic
}

// roomCommand sends one command and asks for a poll when it succeeds
func (r *Room) roomCommand(ctx context.Context, fn func(room *c4api.Room) error) error {
	if err := r.commander.RoomCommand(ctx, r.id, fn); err != nil {
		return err
	}

	r.data.RequestRefresh()
	return nil
}

// TurnOn only marks the room as on.  The director has no room power on
// without a source; selecting a source powers the room up.
func (r *Room) TurnOn(ctx context.Context) error {
	r.mu.Lock()
	r.softOn = true
	r.mu.Unlock()

	r.data.RequestRefresh()
	return nil
}

func (r *Room) TurnOff(ctx context.Context) error {
	r.mu.Lock()
	r.softOn = false
	r.mu.Unlock()

	return r.roomCommand(ctx, func(room *c4api.Room) error {
		return room.SetRoomOff(ctx)
	})
}

func (r *Room) SetVolumeLevel(ctx context.Context, volume float64) error {
	return r.roomCommand(ctx, func(room *c4api.Room) error {
		return room.SetVolume(ctx, ToDirectorVolume(volume))
	})
}

func (r *Room) MuteVolume(ctx context.Context, mute bool) error {
	return r.roomCommand(ctx, func(room *c4api.Room) error {
		return room.SetMute(ctx, mute)
	})
}

func (r *Room) ToggleMute(ctx context.Context) error {
	return r.roomCommand(ctx, func(room *c4api.Room) error {
		return room.ToggleMute(ctx)
	})
}

func (r *Room) VolumeUp(ctx context.Context) error {
	return r.roomCommand(ctx, func(room *c4api.Room) error {
		return room.VolumeUp(ctx)
	})
}

func (r *Room) VolumeDown(ctx context.Context) error {
	return r.roomCommand(ctx, func(room *c4api.Room) error {
		return room.VolumeDown(ctx)
	})
}

// SelectSource selects the named source, as video if the device is a
// video source in this room.  Unknown names are ignored.
func (r *Room) SelectSource(ctx context.Context, source string) error {
	for _, src := range sortedSources(r.sources) {
		if src.Name != source {
			continue
		}

		audioOnly := !src.IsVideo()
		return r.roomCommand(ctx, func(room *c4api.Room) error {
			return room.SetSource(ctx, src.ID, audioOnly)
		})
	}

	logging.Logger(ctx).Warnf("room %s: no source named %q", r.name, source)
	r.data.RequestRefresh()
	return nil
}

func (r *Room) MediaPlay(ctx context.Context) error {
	return r.roomCommand(ctx, func(room *c4api.Room) error {
		return room.Play(ctx)
	})
}

func (r *Room) MediaPause(ctx context.Context) error {
	return r.roomCommand(ctx, func(room *c4api.Room) error {
		return room.Pause(ctx)
	})
}

func (r *Room) MediaStop(ctx context.Context) error {
	return r.roomCommand(ctx, func(room *c4api.Room) error {
		return room.Stop(ctx)
	})
}

// MediaPlayPause toggles playback, but only when the selected source
// reports a playback state
func (r *Room) MediaPlayPause(ctx context.Context) error {
	state, ok := r.sourceState(r.data.Data())
	if !ok {
		return nil
	}

	if state == StatePlaying {
		return r.MediaPause(ctx)
	}
	return r.MediaPlay(ctx)
}
