package c4auth

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
)

// Credentials is one account/director token pair.  A pair is only ever
// replaced as a whole; callers take a copy for the duration of one call.
type Credentials struct {
	AccountToken   string
	DirectorToken  string
	DirectorExpiry time.Time
}

func hashOf(s string) string {
	if s == "" {
		return ""
	}

	sum := sha1.Sum([]byte(s))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// obfuscate tokens when stringified
//
func (c Credentials) String() string {
	return fmt.Sprintf("accountToken [%s]  directorToken [%s]  directorExpiry [%s]",
		hashOf(c.AccountToken), hashOf(c.DirectorToken), c.DirectorExpiry)
}

func (c Credentials) IsZero() bool {
	return c.DirectorToken == "" && c.AccountToken == ""
}

// State is what we persist between runs so a restart does not need a new
// account login
type State struct {
	Username       string
	ControllerName string
	Credentials    Credentials
}

// Version of state that we marshal/unmarshal
type stateMarshal struct {
	Username       string    `json:"username"`
	ControllerName string    `json:"controller-name"`
	AccountToken   string    `json:"account-token"`
	DirectorToken  string    `json:"director-token"`
	DirectorExpiry time.Time `json:"director-token-expiry"`
}

func (s State) String() string {
	return fmt.Sprintf("Username [%s]  ControllerName [%s]  %s", s.Username, s.ControllerName, s.Credentials)
}

func (s State) Save(fileName string) error {
	sm := stateMarshal{
		Username:       s.Username,
		ControllerName: s.ControllerName,
		AccountToken:   s.Credentials.AccountToken,
		DirectorToken:  s.Credentials.DirectorToken,
		DirectorExpiry: s.Credentials.DirectorExpiry,
	}

	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrapf(err, "opening token state %s for write", fileName)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(sm); err != nil {
		return errors.Wrapf(err, "saving token state to %s", fileName)
	}

	return nil
}

func (s *State) Load(fileName string) error {
	sm := stateMarshal{}

	file, err := os.OpenFile(fileName, os.O_RDONLY, 0600)
	if err != nil {
		return errors.Wrapf(err, "opening token state %s for read", fileName)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&sm); err != nil {
		return errors.Wrapf(err, "loading token state from %s", fileName)
	}

	s.Username = sm.Username
	s.ControllerName = sm.ControllerName
	s.Credentials = Credentials{
		AccountToken:   sm.AccountToken,
		DirectorToken:  sm.DirectorToken,
		DirectorExpiry: sm.DirectorExpiry,
	}

	return nil
}
