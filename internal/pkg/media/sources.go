package media

import (
	"fmt"
	"sort"

	"github.com/jake-scott/control4-bridge/internal/pkg/c4api"
)

type SourceType string

const (
	SourceAudio SourceType = "audio"
	SourceVideo SourceType = "video"
)

// RoomSource is a device a room can select.  One device may be both an
// audio and a video source.
type RoomSource struct {
	ID    int
	Name  string
	Types map[SourceType]bool
}

func (s *RoomSource) IsVideo() bool {
	return s.Types[SourceVideo]
}

// BuildRoomSources collects the listen and watch sources of a room from
// the UI configuration.  Devices not in itemsByID get a placeholder name.
func BuildRoomSources(roomID int, cfg *c4api.UIConfiguration, itemsByID map[int]c4api.Item) map[int]*RoomSource {
	sources := make(map[int]*RoomSource)
	if cfg == nil {
		return sources
	}

	for _, exp := range cfg.Experiences {
		if int(exp.RoomID) != roomID || exp.Sources == nil {
			continue
		}

		var st SourceType
		switch exp.Type {
		case "listen":
			st = SourceAudio
		case "watch":
			st = SourceVideo
		default:
			continue
		}

		for _, src := range exp.Sources.Source {
			devID := int(src.ID)
			if existing, ok := sources[devID]; ok {
				existing.Types[st] = true
				continue
			}

			name := fmt.Sprintf("Unknown Device - %d", devID)
			if item, ok := itemsByID[devID]; ok && item.Name != nil {
				name = *item.Name
			}

			sources[devID] = &RoomSource{
				ID:    devID,
				Name:  name,
				Types: map[SourceType]bool{st: true},
			}
		}
	}

	return sources
}

func sortedSources(sources map[int]*RoomSource) []*RoomSource {
	out := make([]*RoomSource, 0, len(sources))
	for _, s := range sources {
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})

	return out
}
