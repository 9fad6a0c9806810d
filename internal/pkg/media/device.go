package media

import (
	"context"
	"strconv"

	"github.com/jake-scott/control4-bridge/internal/pkg/c4api"
	"github.com/jake-scott/control4-bridge/internal/pkg/director"
)

// DeviceVariables are polled for every item by the media player coordinator
var DeviceVariables = []string{
	VarPowerState,
	VarCurrentVolume,
	VarIsMuted,
	VarPlaying,
	VarPaused,
	VarStopped,
}

const deviceFeatures = FeaturePlay | FeaturePause | FeatureStop |
	FeatureVolumeMute | FeatureVolumeSet | FeatureVolumeStep |
	FeatureTurnOff | FeatureTurnOn

// DefaultMediaProxies are the proxy types exposed as media players
var DefaultMediaProxies = []string{"media_player", "receiver", "tv", "avswitch"}

// MediaPlayer is a media player for a single AV device
type MediaPlayer struct {
	id        int
	name      string
	roomName  string
	proxy     string
	data      DataSource
	commander Commander
}

func NewMediaPlayer(id int, name string, roomName string, proxy string, data DataSource, commander Commander) *MediaPlayer {
	return &MediaPlayer{
		id:        id,
		name:      name,
		roomName:  roomName,
		proxy:     proxy,
		data:      data,
		commander: commander,
	}
}

func (m *MediaPlayer) UniqueID() string {
	return strconv.Itoa(m.id)
}

func (m *MediaPlayer) ItemID() int {
	return m.id
}

func (m *MediaPlayer) Name() string {
	if m.roomName != "" {
		return m.roomName + " " + m.name
	}
	return m.name
}

func (m *MediaPlayer) Platform() string {
	return PlatformMediaPlayer
}

func (m *MediaPlayer) EnabledByDefault() bool {
	return true
}

func (m *MediaPlayer) DeviceInfo() DeviceInfo {
	return DeviceInfo{
		Identifier:   m.UniqueID(),
		Name:         m.name,
		Manufacturer: "Control4",
		Model:        m.proxy,
	}
}

func (m *MediaPlayer) SupportedFeatures() Feature {
	return deviceFeatures
}

func (m *MediaPlayer) Available() bool {
	return m.data.LastUpdateSuccess()
}

func (m *MediaPlayer) vars() director.Variables {
	if v := m.data.Data()[m.id]; v != nil {
		return v
	}
	return director.Variables{}
}

// playbackState reads the device's own PLAYING/PAUSED/STOPPED variables
func (m *MediaPlayer) playbackState() (State, bool) {
	vars := m.vars()

	switch {
	case vars.Truthy(VarPlaying):
		return StatePlaying, true
	case vars.Truthy(VarPaused):
		return StatePaused, true
	case vars.Truthy(VarStopped):
		return StateOn, true
	}

	return "", false
}

func (m *MediaPlayer) State() State {
	if s, ok := m.playbackState(); ok {
		return s
	}

	if m.vars().Truthy(VarPowerState) {
		return StateOn
	}

	return StateOff
}

func (m *MediaPlayer) VolumeLevel() (float64, bool) {
	level, ok := m.vars().Float(VarCurrentVolume)
	if !ok {
		return 0, false
	}
	return FromDirectorVolume(level), true
}

func (m *MediaPlayer) IsVolumeMuted() bool {
	return m.vars().Truthy(VarIsMuted)
}

func (m *MediaPlayer) Source() string {
	return ""
}

func (m *MediaPlayer) SourceList() []string {
	return nil
}

func (m *MediaPlayer) MediaContentType() ContentType {
	return ContentNone
}

func (m *MediaPlayer) deviceCommand(ctx context.Context, fn func(d *c4api.Device) error) error {
	if err := m.commander.DeviceCommand(ctx, m.id, fn); err != nil {
		return err
	}

	m.data.RequestRefresh()
	return nil
}

func (m *MediaPlayer) TurnOn(ctx context.Context) error {
	return m.deviceCommand(ctx, func(d *c4api.Device) error {
		return d.On(ctx)
	})
}

func (m *MediaPlayer) TurnOff(ctx context.Context) error {
	return m.deviceCommand(ctx, func(d *c4api.Device) error {
		return d.Off(ctx)
	})
}

func (m *MediaPlayer) SetVolumeLevel(ctx context.Context, volume float64) error {
	return m.deviceCommand(ctx, func(d *c4api.Device) error {
		return d.SetVolume(ctx, ToDirectorVolume(volume))
	})
}

func (m *MediaPlayer) MuteVolume(ctx context.Context, mute bool) error {
	return m.deviceCommand(ctx, func(d *c4api.Device) error {
		return d.SetMute(ctx, mute)
	})
}

// ToggleMute inverts the last polled mute state; devices have no toggle command
func (m *MediaPlayer) ToggleMute(ctx context.Context) error {
	return m.MuteVolume(ctx, !m.IsVolumeMuted())
}

func (m *MediaPlayer) VolumeUp(ctx context.Context) error {
	return m.deviceCommand(ctx, func(d *c4api.Device) error {
		return d.VolumeUp(ctx)
	})
}

func (m *MediaPlayer) VolumeDown(ctx context.Context) error {
	return m.deviceCommand(ctx, func(d *c4api.Device) error {
		return d.VolumeDown(ctx)
	})
}

func (m *MediaPlayer) SelectSource(ctx context.Context, source string) error {
	return ErrNotSupported
}

func (m *MediaPlayer) MediaPlay(ctx context.Context) error {
	return m.deviceCommand(ctx, func(d *c4api.Device) error {
		return d.Play(ctx)
	})
}

func (m *MediaPlayer) MediaPause(ctx context.Context) error {
	return m.deviceCommand(ctx, func(d *c4api.Device) error {
		return d.Pause(ctx)
	})
}

func (m *MediaPlayer) MediaStop(ctx context.Context) error {
	return m.deviceCommand(ctx, func(d *c4api.Device) error {
		return d.Stop(ctx)
	})
}

// MediaPlayPause toggles playback when the device reports a playback state
func (m *MediaPlayer) MediaPlayPause(ctx context.Context) error {
	state, ok := m.playbackState()
	if !ok {
		return nil
	}

	if state == StatePlaying {
		return m.MediaPause(ctx)
	}
	return m.MediaPlay(ctx)
}
