package handlers

import (
	"github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/swag"
	"github.com/go-openapi/validate"

	"github.com/jake-scott/control4-bridge/internal/pkg/media"
)

// CommandRequest is the body of POST /entities/{id}/commands
type CommandRequest struct {

	// command
	// Required: true
	// Enum: [turn_on turn_off volume_set volume_mute volume_up volume_down select_source media_play media_pause media_stop media_play_pause]
	Command *string `json:"command"`

	// volume, 0 to 1
	// Maximum: 1
	// Minimum: 0
	Volume *float64 `json:"volume,omitempty"`

	// mute; toggles the current state when omitted
	Mute *bool `json:"mute,omitempty"`

	// source name, as listed in source_list
	Source string `json:"source,omitempty"`
}

var commandRequestCommandEnum = []interface{}{
	media.CmdTurnOn,
	media.CmdTurnOff,
	media.CmdVolumeSet,
	media.CmdVolumeMute,
	media.CmdVolumeUp,
	media.CmdVolumeDown,
	media.CmdSelectSource,
	media.CmdMediaPlay,
	media.CmdMediaPause,
	media.CmdMediaStop,
	media.CmdMediaPlayPause,
}

// Validate validates this command request
func (m *CommandRequest) Validate(formats strfmt.Registry) error {
	var res []error

	if err := m.validateCommand(formats); err != nil {
		res = append(res, err)
	}

	if err := m.validateVolume(formats); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

func (m *CommandRequest) validateCommand(formats strfmt.Registry) error {

	if err := validate.Required("command", "body", m.Command); err != nil {
		return err
	}

	if err := validate.Enum("command", "body", *m.Command, commandRequestCommandEnum); err != nil {
		return err
	}

	return nil
}

func (m *CommandRequest) validateVolume(formats strfmt.Registry) error {

	if swag.IsZero(m.Volume) { // not required
		return nil
	}

	if err := validate.Minimum("volume", "body", *m.Volume, 0, false); err != nil {
		return err
	}

	if err := validate.Maximum("volume", "body", *m.Volume, 1, false); err != nil {
		return err
	}

	return nil
}

// ToCommand converts a validated request
func (m *CommandRequest) ToCommand() media.Command {
	return media.Command{
		Name:   swag.StringValue(m.Command),
		Volume: m.Volume,
		Mute:   m.Mute,
		Source: m.Source,
	}
}

// EntityState is one entity as returned by the API
type EntityState struct {
	media.Snapshot

	// time of the last successful poll
	LastUpdated strfmt.DateTime `json:"last_updated"`
}

// CoordinatorHealth is the poll status of one platform
type CoordinatorHealth struct {
	Name        string          `json:"name"`
	Healthy     bool            `json:"healthy"`
	LastUpdated strfmt.DateTime `json:"last_updated"`
	LastError   string          `json:"last_error,omitempty"`
	Entities    int             `json:"entities"`
}

type HealthResponse struct {
	Healthy      bool                `json:"healthy"`
	Coordinators []CoordinatorHealth `json:"coordinators"`
}
