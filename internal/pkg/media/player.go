package media

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/jake-scott/control4-bridge/internal/pkg/c4api"
)

type State string

const (
	StateOff     State = "off"
	StateOn      State = "on"
	StateIdle    State = "idle"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

type ContentType string

const (
	ContentNone  ContentType = ""
	ContentMusic ContentType = "music"
	ContentMovie ContentType = "movie"
)

// Feature is a bit set of the commands a player accepts
type Feature uint32

const (
	FeaturePause Feature = 1 << iota
	FeatureVolumeSet
	FeatureVolumeMute
	FeatureTurnOn
	FeatureTurnOff
	FeatureVolumeStep
	FeatureSelectSource
	FeatureStop
	FeaturePlay
	FeatureGrouping
)

var featureNames = []struct {
	f    Feature
	name string
}{
	{FeaturePlay, "play"},
	{FeaturePause, "pause"},
	{FeatureStop, "stop"},
	{FeatureVolumeMute, "volume_mute"},
	{FeatureVolumeSet, "volume_set"},
	{FeatureVolumeStep, "volume_step"},
	{FeatureTurnOn, "turn_on"},
	{FeatureTurnOff, "turn_off"},
	{FeatureSelectSource, "select_source"},
	{FeatureGrouping, "grouping"},
}

func (f Feature) Has(other Feature) bool {
	return f&other == other
}

// Names lists the features in a stable order
func (f Feature) Names() []string {
	var out []string
	for _, fn := range featureNames {
		if f.Has(fn.f) {
			out = append(out, fn.name)
		}
	}

	return out
}

var ErrNotSupported = errors.New("command not supported by this player")

type DeviceInfo struct {
	Identifier   string `json:"identifier"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
}

// Player is a media player entity backed by a director item
type Player interface {
	UniqueID() string
	ItemID() int
	Name() string
	Platform() string
	EnabledByDefault() bool
	DeviceInfo() DeviceInfo
	SupportedFeatures() Feature

	Available() bool
	State() State
	VolumeLevel() (float64, bool)
	IsVolumeMuted() bool
	Source() string
	SourceList() []string
	MediaContentType() ContentType

	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
	SetVolumeLevel(ctx context.Context, volume float64) error
	MuteVolume(ctx context.Context, mute bool) error
	ToggleMute(ctx context.Context) error
	VolumeUp(ctx context.Context) error
	VolumeDown(ctx context.Context) error
	SelectSource(ctx context.Context, source string) error
	MediaPlay(ctx context.Context) error
	MediaPause(ctx context.Context) error
	MediaStop(ctx context.Context) error
	MediaPlayPause(ctx context.Context) error
}

// Commander runs commands with a fresh token pair per call
type Commander interface {
	RoomCommand(ctx context.Context, roomID int, fn func(r *c4api.Room) error) error
	DeviceCommand(ctx context.Context, deviceID int, fn func(d *c4api.Device) error) error
}

// ToDirectorVolume converts a 0-1 volume to the director's 0-100 scale
func ToDirectorVolume(v float64) int {
	return int(math.Round(math.Max(0, math.Min(1, v)) * 100))
}

// FromDirectorVolume converts a 0-100 director volume to 0-1
func FromDirectorVolume(level float64) float64 {
	return level / 100
}
