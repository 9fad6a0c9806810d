package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jake-scott/control4-bridge/internal/pkg/c4api"
)

func TestItemRows(t *testing.T) {
	var items []c4api.Item
	require.NoError(t, json.Unmarshal([]byte(`[
		{"id": 12, "name": "Kitchen", "typeName": "room", "parentId": 8},
		{"id": 40, "name": "Sonos", "typeName": "device", "proxy": "media_player", "roomName": "Kitchen", "parentId": 12},
		{"id": 50, "name": "Light", "typeName": "device", "proxy": "light_v2", "parentId": 12},
		{"name": "no id", "typeName": "room"}
	]`), &items))

	rows := itemRows(items, false, []string{"media_player"})
	require.Len(t, rows, 2)
	assert.Equal(t, itemRow{ID: 12, Name: "Kitchen", Type: "room", ParentID: 8}, rows[0])
	assert.Equal(t, "Kitchen", rows[1].RoomName)

	assert.Len(t, itemRows(items, true, nil), 3)
}

func TestCheckRequiredFlags(t *testing.T) {
	err := checkRequiredFlags("test.not-set-a", "test.not-set-b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required config items `test.not-set-a`, `test.not-set-b` not set")
}
