package c4api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const (
	DefaultAccountURL = "https://apis.control4.com"

	authenticationPath = "/authentication/v1/rest"
	authorizationPath  = "/authentication/v1/rest/authorization"
	accountsPath       = "/account/v3/rest/accounts"

	applicationKey = "78f6791373d61bea49fdb9fb8897f1f3af193f11"
)

// LiveAccount talks to the Control4 cloud account service
type LiveAccount struct {
	baseURL     string
	bearerToken string
	deviceUUID  string
	timeout     time.Duration
}

func NewLiveAccount(baseURL string) *LiveAccount {
	if baseURL == "" {
		baseURL = DefaultAccountURL
	}

	return &LiveAccount{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		deviceUUID: uuid.New().String(),
	}
}

func (c *LiveAccount) WithBearerToken(token string) Account {
	nc := *c
	nc.bearerToken = token
	return &nc
}

func (c *LiveAccount) WithTimeout(d time.Duration) Account {
	nc := *c
	nc.timeout = d
	return &nc
}

func (c *LiveAccount) api() *http.Client {
	if c.bearerToken == "" {
		return http.DefaultClient
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.bearerToken})
	return &http.Client{Transport: &oauth2.Transport{Source: ts}}
}

type clientDevice struct {
	DeviceName string `json:"deviceName"`
	DeviceUUID string `json:"deviceUUID"`
	Make       string `json:"make"`
	Model      string `json:"model"`
	OS         string `json:"os"`
	OSVersion  string `json:"osVersion"`
}

type userInfo struct {
	ApplicationKey string `json:"applicationKey"`
	Password       string `json:"password"`
	UserName       string `json:"userName"`
}

type authenticationRequest struct {
	ClientInfo struct {
		Device   clientDevice `json:"device"`
		UserInfo userInfo     `json:"userInfo"`
	} `json:"clientInfo"`
}

type authTokenResponse struct {
	AuthToken struct {
		Token        string `json:"token"`
		ValidSeconds int64  `json:"validSeconds"`
	} `json:"authToken"`
}

type serviceInfoRequest struct {
	ServiceInfo struct {
		CommonName string `json:"commonName"`
		Services   string `json:"services"`
	} `json:"serviceInfo"`
}

// BearerToken logs in to the account service and returns an account token
func (c *LiveAccount) BearerToken(ctx context.Context, username string, password string) (string, error) {
	req := authenticationRequest{}
	req.ClientInfo.Device = clientDevice{
		DeviceName: "control4-bridge",
		DeviceUUID: c.deviceUUID,
		Make:       "control4-bridge",
		Model:      "control4-bridge",
		OS:         "Linux",
		OSVersion:  "1",
	}
	req.ClientInfo.UserInfo = userInfo{
		ApplicationKey: applicationKey,
		Password:       password,
		UserName:       username,
	}

	ctx, cancel := makeContext(ctx, c.timeout)
	defer cancel()

	resp := authTokenResponse{}
	if err := doJSON(ctx, c.api(), http.MethodPost, c.baseURL+authenticationPath, req, &resp); err != nil {
		return "", errors.Wrap(err, "authenticating account")
	}

	if resp.AuthToken.Token == "" {
		return "", errors.New("authenticating account: no token in response")
	}

	return resp.AuthToken.Token, nil
}

type accountsResponse struct {
	Account *Controller `json:"account"`
}

// Controllers lists the controllers registered to the account
func (c *LiveAccount) Controllers(ctx context.Context) ([]Controller, error) {
	ctx, cancel := makeContext(ctx, c.timeout)
	defer cancel()

	resp := accountsResponse{}
	if err := doJSON(ctx, c.api(), http.MethodGet, c.baseURL+accountsPath, nil, &resp); err != nil {
		return nil, errors.Wrap(err, "listing account controllers")
	}

	if resp.Account == nil {
		return nil, nil
	}

	return []Controller{*resp.Account}, nil
}

// DirectorBearerToken exchanges the account token for a director token
func (c *LiveAccount) DirectorBearerToken(ctx context.Context, controllerCommonName string) (DirectorToken, error) {
	req := serviceInfoRequest{}
	req.ServiceInfo.CommonName = controllerCommonName
	req.ServiceInfo.Services = "director"

	ctx, cancel := makeContext(ctx, c.timeout)
	defer cancel()

	resp := authTokenResponse{}
	if err := doJSON(ctx, c.api(), http.MethodPost, c.baseURL+authorizationPath, req, &resp); err != nil {
		return DirectorToken{}, errors.Wrapf(err, "fetching director token for %s", controllerCommonName)
	}

	if resp.AuthToken.Token == "" {
		return DirectorToken{}, errors.Errorf("fetching director token for %s: no token in response", controllerCommonName)
	}

	return DirectorToken{
		Token:  resp.AuthToken.Token,
		Expiry: time.Now().Add(time.Second * time.Duration(resp.AuthToken.ValidSeconds)),
	}, nil
}
