package c4api

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-openapi/swag"
	"github.com/pkg/errors"
)

// FlexInt is an integer the director sometimes encodes as a string
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return errors.Wrapf(err, "decoding integer %s", b)
	}

	*f = FlexInt(n)
	return nil
}

// Item is a director project item.  Optional fields are pointers so that
// callers can tell a missing field from a zero value.
type Item struct {
	ID         *FlexInt `json:"id"`
	Name       *string  `json:"name"`
	TypeName   string   `json:"typeName"`
	ParentID   *FlexInt `json:"parentId"`
	RoomID     *FlexInt `json:"roomId"`
	RoomName   string   `json:"roomName"`
	RoomHidden *bool    `json:"roomHidden"`
	Proxy      string   `json:"proxy"`
	Control    string   `json:"control"`
}

func (i Item) ItemID() (int, bool) {
	if i.ID == nil {
		return 0, false
	}
	return int(*i.ID), true
}

func (i Item) Parent() (int, bool) {
	if i.ParentID == nil {
		return 0, false
	}
	return int(*i.ParentID), true
}

func (i Item) ItemName() string {
	return swag.StringValue(i.Name)
}

// VariableValue is one row of a variables query
type VariableValue struct {
	ID      FlexInt     `json:"id"`
	VarName string      `json:"varName"`
	Value   interface{} `json:"value"`
	Type    string      `json:"type"`
}

type ExperienceSource struct {
	ID   FlexInt `json:"id"`
	Type string  `json:"type"`
	Name string  `json:"name,omitempty"`
}

type ExperienceSources struct {
	Source []ExperienceSource `json:"source"`
}

// Experience is a per-room UI experience (listen, watch, lights, ...)
type Experience struct {
	Type    string             `json:"type"`
	RoomID  FlexInt            `json:"room_id"`
	Active  bool               `json:"active"`
	Sources *ExperienceSources `json:"sources,omitempty"`
}

type UIConfiguration struct {
	Experiences []Experience `json:"experiences"`
}

// DirectorToken is a bearer token for one controller
type DirectorToken struct {
	Token  string
	Expiry time.Time
}

type Controller struct {
	CommonName string `json:"controllerCommonName"`
	Name       string `json:"name"`
	Href       string `json:"href"`
}

// Director is the local controller API
type Director interface {
	WithBearerToken(token string) Director
	WithTimeout(d time.Duration) Director
	AllItems(ctx context.Context) ([]Item, error)
	ItemInfo(ctx context.Context, itemID int) ([]Item, error)
	AllItemVariableValues(ctx context.Context, varNames []string) ([]VariableValue, error)
	ItemVariableValues(ctx context.Context, itemID int, varNames []string) ([]VariableValue, error)
	UIConfiguration(ctx context.Context) (*UIConfiguration, error)
	SendCommand(ctx context.Context, itemID int, command string, params map[string]interface{}) error
}

// Account is the vendor cloud account API
type Account interface {
	WithBearerToken(token string) Account
	WithTimeout(d time.Duration) Account
	BearerToken(ctx context.Context, username string, password string) (string, error)
	Controllers(ctx context.Context) ([]Controller, error)
	DirectorBearerToken(ctx context.Context, controllerCommonName string) (DirectorToken, error)
}
