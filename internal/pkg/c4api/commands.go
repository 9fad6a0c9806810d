package c4api

import "context"

// Room sends room proxy commands.  It holds no state beyond the director
// client it was built with, so build one per command.
type Room struct {
	director Director
	id       int
}

func NewRoom(d Director, itemID int) *Room {
	return &Room{director: d, id: itemID}
}

func (r *Room) send(ctx context.Context, command string, params map[string]interface{}) error {
	return r.director.SendCommand(ctx, r.id, command, params)
}

func (r *Room) SetRoomOff(ctx context.Context) error {
	return r.send(ctx, "ROOM_OFF", nil)
}

// SetSource selects a device as the room's current audio or video source
func (r *Room) SetSource(ctx context.Context, sourceID int, audioOnly bool) error {
	command := "SELECT_VIDEO_DEVICE"
	if audioOnly {
		command = "SELECT_AUDIO_DEVICE"
	}

	return r.send(ctx, command, map[string]interface{}{"deviceid": sourceID})
}

func (r *Room) SetMute(ctx context.Context, muted bool) error {
	if muted {
		return r.send(ctx, "MUTE_ON", nil)
	}
	return r.send(ctx, "MUTE_OFF", nil)
}

func (r *Room) ToggleMute(ctx context.Context) error {
	return r.send(ctx, "MUTE_TOGGLE", nil)
}

// SetVolume sets the room volume, 0-100
func (r *Room) SetVolume(ctx context.Context, level int) error {
	return r.send(ctx, "SET_VOLUME_LEVEL", map[string]interface{}{"LEVEL": level})
}

func (r *Room) VolumeUp(ctx context.Context) error {
	return r.send(ctx, "PULSE_VOL_UP", nil)
}

func (r *Room) VolumeDown(ctx context.Context) error {
	return r.send(ctx, "PULSE_VOL_DOWN", nil)
}

func (r *Room) Play(ctx context.Context) error {
	return r.send(ctx, "PLAY", nil)
}

func (r *Room) Pause(ctx context.Context) error {
	return r.send(ctx, "PAUSE", nil)
}

func (r *Room) Stop(ctx context.Context) error {
	return r.send(ctx, "STOP", nil)
}

// Device sends commands to an AV device proxy (receiver, TV, media player)
type Device struct {
	director Director
	id       int
}

func NewDevice(d Director, itemID int) *Device {
	return &Device{director: d, id: itemID}
}

func (d *Device) send(ctx context.Context, command string, params map[string]interface{}) error {
	return d.director.SendCommand(ctx, d.id, command, params)
}

func (d *Device) On(ctx context.Context) error {
	return d.send(ctx, "ON", nil)
}

func (d *Device) Off(ctx context.Context) error {
	return d.send(ctx, "OFF", nil)
}

func (d *Device) SetVolume(ctx context.Context, level int) error {
	return d.send(ctx, "SET_VOLUME_LEVEL", map[string]interface{}{"LEVEL": level})
}

func (d *Device) SetMute(ctx context.Context, muted bool) error {
	if muted {
		return d.send(ctx, "MUTE_ON", nil)
	}
	return d.send(ctx, "MUTE_OFF", nil)
}

func (d *Device) VolumeUp(ctx context.Context) error {
	return d.send(ctx, "PULSE_VOL_UP", nil)
}

func (d *Device) VolumeDown(ctx context.Context) error {
	return d.send(ctx, "PULSE_VOL_DOWN", nil)
}

func (d *Device) Play(ctx context.Context) error {
	return d.send(ctx, "PLAY", nil)
}

func (d *Device) Pause(ctx context.Context) error {
	return d.send(ctx, "PAUSE", nil)
}

func (d *Device) Stop(ctx context.Context) error {
	return d.send(ctx, "STOP", nil)
}
