package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jake-scott/control4-bridge/internal/pkg/c4auth"
)

func TestUsableState(t *testing.T) {
	saved := c4auth.State{
		Username:       "alice@example.com",
		ControllerName: "control4_core1_000FFF",
		Credentials:    c4auth.Credentials{AccountToken: "acct", DirectorToken: "dir"},
	}

	tests := []struct {
		name           string
		username       string
		controller     string
		wantToken      string
		wantController string
	}{
		{"same user, controller from state", "alice@example.com", "", "dir", "control4_core1_000FFF"},
		{"same user and controller", "alice@example.com", "control4_core1_000FFF", "dir", "control4_core1_000FFF"},
		{"other user", "bob@example.com", "", "", ""},
		{"other controller", "alice@example.com", "control4_ea5_111AAA", "", "control4_ea5_111AAA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, controller := usableState(context.Background(), saved, tt.username, tt.controller)
			assert.Equal(t, tt.wantToken, st.Credentials.DirectorToken)
			assert.Equal(t, tt.wantController, controller)
		})
	}
}

func TestUsableStateWithoutSavedController(t *testing.T) {
	saved := c4auth.State{
		Username:    "alice@example.com",
		Credentials: c4auth.Credentials{DirectorToken: "dir"},
	}

	st, controller := usableState(context.Background(), saved, "alice@example.com", "control4_core1_000FFF")
	assert.Equal(t, "dir", st.Credentials.DirectorToken)
	assert.Equal(t, "control4_core1_000FFF", controller)
}
