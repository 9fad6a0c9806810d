package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jake-scott/control4-bridge/internal/pkg/c4api"
	"github.com/jake-scott/control4-bridge/internal/pkg/c4api/mocks"
	"github.com/jake-scott/control4-bridge/internal/pkg/c4auth"
	"github.com/jake-scott/control4-bridge/internal/pkg/coordinator"
	"github.com/jake-scott/control4-bridge/internal/pkg/director"
	"github.com/jake-scott/control4-bridge/internal/pkg/media"
)

func newTestRouter(t *testing.T, d *mocks.MockDirector, pollErr error) *mux.Router {
	t.Helper()

	helper := director.NewHelper(c4auth.NewSession(c4auth.Config{}, c4auth.Credentials{DirectorToken: "dir"}), d)

	c := coordinator.New(media.PlatformRoom, time.Hour, func(ctx context.Context) (map[int]director.Variables, error) {
		if pollErr != nil {
			return nil, pollErr
		}
		return map[int]director.Variables{
			12: {media.VarPowerState: true, media.VarCurrentVolume: float64(40)},
		}, nil
	})
	_ = c.Refresh(context.Background())

	sources := map[int]*media.RoomSource{
		40: {ID: 40, Name: "Sonos", Types: map[media.SourceType]bool{media.SourceAudio: true}},
	}

	reg := media.NewRegistry()
	reg.Add(&media.Platform{
		Name:        media.PlatformRoom,
		Coordinator: c,
		Players:     []media.Player{media.NewRoom(12, "Kitchen", false, c, helper, sources, nil)},
	})

	r := mux.NewRouter()
	NewEntityHandler(reg, time.Second*5).Routes(r)
	return r
}

func doRequest(r http.Handler, method string, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestListAndGet(t *testing.T) {
	r := newTestRouter(t, &mocks.MockDirector{}, nil)

	rec := doRequest(r, http.MethodGet, "/entities", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var states []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &states))
	require.Len(t, states, 1)
	assert.Equal(t, "12", states[0]["entity_id"])
	assert.Equal(t, "on", states[0]["state"])
	assert.Equal(t, 0.4, states[0]["volume_level"])
	assert.NotEmpty(t, states[0]["last_updated"])

	rec = doRequest(r, http.MethodGet, "/entities/12", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(r, http.MethodGet, "/entities/99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCommand(t *testing.T) {
	d := &mocks.MockDirector{}
	d.On("SendCommand", mock.Anything, 12, "SELECT_AUDIO_DEVICE", map[string]interface{}{"deviceid": 40}).Return(nil).Once()
	d.On("SendCommand", mock.Anything, 12, "SET_VOLUME_LEVEL", map[string]interface{}{"LEVEL": 75}).Return(nil).Once()
	r := newTestRouter(t, d, nil)

	rec := doRequest(r, http.MethodPost, "/entities/12/commands", `{"command":"select_source","source":"Sonos"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(r, http.MethodPost, "/entities/12/commands", `{"command":"volume_set","volume":0.75}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	d.AssertExpectations(t)
}

func TestCommandValidation(t *testing.T) {
	r := newTestRouter(t, &mocks.MockDirector{}, nil)

	for _, body := range []string{
		`{}`,
		`{"command":"self_destruct"}`,
		`{"command":"volume_set","volume":1.5}`,
		`{"command":"volume_set","volume":-1}`,
		`{"command":"volume_set"}`,
		`{"command":"turn_on","extra":1}`,
		`{"command":"turn_on"}{"command":"turn_off"}`,
		`not json`,
	} {
		rec := doRequest(r, http.MethodPost, "/entities/12/commands", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	req := httptest.NewRequest(http.MethodPost, "/entities/12/commands", strings.NewReader(`command=turn_on`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(r, http.MethodPost, "/entities/99/commands", `{"command":"turn_on"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCommandDirectorFailure(t *testing.T) {
	d := &mocks.MockDirector{}
	d.On("SendCommand", mock.Anything, 12, "ROOM_OFF", mock.Anything).
		Return(errors.Wrap(c4api.ErrNotFound, "executing command ROOM_OFF on item 12")).Once()
	r := newTestRouter(t, d, nil)

	rec := doRequest(r, http.MethodPost, "/entities/12/commands", `{"command":"turn_off"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := doRequest(newTestRouter(t, &mocks.MockDirector{}, nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Healthy)
	require.Len(t, resp.Coordinators, 1)
	assert.Equal(t, 1, resp.Coordinators[0].Entities)

	rec = doRequest(newTestRouter(t, &mocks.MockDirector{}, errors.New("no route to host")), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "no route to host")
}
