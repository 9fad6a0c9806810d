package c4api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDirector(t *testing.T, h http.HandlerFunc) Director {
	t.Helper()
	srv := httptest.NewTLSServer(h)
	t.Cleanup(srv.Close)

	return NewLiveDirector(srv.URL, false).WithBearerToken("dir-token").WithTimeout(time.Second * 5)
}

func TestAllItems(t *testing.T) {
	d := newTestDirector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/items", r.URL.Path)
		assert.Equal(t, "Bearer dir-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[
			{"id":"12","name":"Kitchen","typeName":"room","parentId":5,"roomHidden":false},
			{"id":40,"name":"Sonos","typeName":"device","parentId":12,"proxy":"media_player"},
			{"name":"orphan","typeName":"room"}
		]`))
	})

	items, err := d.AllItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)

	id, ok := items[0].ItemID()
	assert.True(t, ok)
	assert.Equal(t, 12, id)
	assert.Equal(t, "Kitchen", items[0].ItemName())
	parent, ok := items[0].Parent()
	assert.True(t, ok)
	assert.Equal(t, 5, parent)
	require.NotNil(t, items[0].RoomHidden)
	assert.False(t, *items[0].RoomHidden)

	assert.Equal(t, "media_player", items[1].Proxy)
	assert.Nil(t, items[1].RoomHidden)

	_, ok = items[2].ItemID()
	assert.False(t, ok)
}

func TestVariableQueries(t *testing.T) {
	d := newTestDirector(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/items/variables":
			assert.Equal(t, "varnames=POWER_STATE,CURRENT_VOLUME", r.URL.RawQuery)
			_, _ = w.Write([]byte(`[{"id":12,"varName":"POWER_STATE","value":1,"type":"Boolean"},{"id":12,"varName":"CURRENT_VOLUME","value":"35","type":"Number"}]`))
		case "/api/v1/items/12/variables":
			assert.Equal(t, "varnames=IS_MUTED", r.URL.RawQuery)
			_, _ = w.Write([]byte(`[{"id":12,"varName":"IS_MUTED","value":0,"type":"Boolean"}]`))
		default:
			http.NotFound(w, r)
		}
	})

	all, err := d.AllItemVariableValues(context.Background(), []string{"POWER_STATE", "CURRENT_VOLUME"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, FlexInt(12), all[0].ID)
	assert.Equal(t, "Number", all[1].Type)

	one, err := d.ItemVariableValues(context.Background(), 12, []string{"IS_MUTED"})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "IS_MUTED", one[0].VarName)
}

func TestUIConfiguration(t *testing.T) {
	d := newTestDirector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/agents/ui_configuration", r.URL.Path)
		_, _ = w.Write([]byte(`{"experiences":[
			{"type":"listen","room_id":12,"sources":{"source":[{"id":40,"type":"DIGITAL_AUDIO_SERVER"}]}},
			{"type":"lights","room_id":12}
		]}`))
	})

	cfg, err := d.UIConfiguration(context.Background())
	require.NoError(t, err)
	require.Len(t, cfg.Experiences, 2)
	require.NotNil(t, cfg.Experiences[0].Sources)
	assert.Equal(t, FlexInt(40), cfg.Experiences[0].Sources.Source[0].ID)
	assert.Nil(t, cfg.Experiences[1].Sources)
}

func TestSendCommand(t *testing.T) {
	var got commandRequest
	d := newTestDirector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/items/12/commands", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"seq":1}`))
	})

	require.NoError(t, NewRoom(d, 12).SetSource(context.Background(), 40, true))
	assert.True(t, got.Async)
	assert.Equal(t, "SELECT_AUDIO_DEVICE", got.Command)
	assert.Equal(t, float64(40), got.Params["deviceid"])

	require.NoError(t, NewRoom(d, 12).SetVolume(context.Background(), 55))
	assert.Equal(t, "SET_VOLUME_LEVEL", got.Command)
	assert.Equal(t, float64(55), got.Params["LEVEL"])

	require.NoError(t, NewRoom(d, 12).SetRoomOff(context.Background()))
	assert.Equal(t, "ROOM_OFF", got.Command)
	assert.NotNil(t, got.Params)
}

func TestDirectorErrors(t *testing.T) {
	status := http.StatusUnauthorized
	body := `{"error":"Unauthorized","details":"Expired or invalid token"}`
	d := newTestDirector(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})

	_, err := d.AllItems(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadToken))

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	status, body = http.StatusUnauthorized, ``
	_, err = d.AllItems(context.Background())
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.False(t, errors.Is(err, ErrBadToken))

	status, body = http.StatusInternalServerError, `oops`
	_, err = d.UIConfiguration(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnauthorized))
}

func TestAccountFlow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case authenticationPath:
			var req authenticationRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, applicationKey, req.ClientInfo.UserInfo.ApplicationKey)
			if req.ClientInfo.UserInfo.Password != "secret" {
				_, _ = w.Write([]byte(`{"C4ErrorResponse":{"code":401,"details":"Permission denied Bad credentials","message":"Permission denied"}}`))
				return
			}
			_, _ = w.Write([]byte(`{"authToken":{"token":"acct-token"}}`))
		case accountsPath:
			assert.Equal(t, "Bearer acct-token", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"account":{"controllerCommonName":"control4_core1_000FFF","name":"Home"}}`))
		case authorizationPath:
			assert.Equal(t, "Bearer acct-token", r.Header.Get("Authorization"))
			var req serviceInfoRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "director", req.ServiceInfo.Services)
			assert.Equal(t, "control4_core1_000FFF", req.ServiceInfo.CommonName)
			_, _ = w.Write([]byte(`{"authToken":{"token":"dir-token","validSeconds":86400}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	acct := NewLiveAccount(srv.URL)

	_, err := acct.BearerToken(context.Background(), "user@example.com", "wrong")
	assert.True(t, errors.Is(err, ErrBadCredentials))

	token, err := acct.BearerToken(context.Background(), "user@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "acct-token", token)

	authed := acct.WithBearerToken(token)
	controllers, err := authed.Controllers(context.Background())
	require.NoError(t, err)
	require.Len(t, controllers, 1)
	assert.Equal(t, "control4_core1_000FFF", controllers[0].CommonName)

	dt, err := authed.DirectorBearerToken(context.Background(), controllers[0].CommonName)
	require.NoError(t, err)
	assert.Equal(t, "dir-token", dt.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour*24), dt.Expiry, time.Minute)
}
