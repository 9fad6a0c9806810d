package c4api

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadCredentials = errors.New("bad credentials")
	ErrBadToken       = errors.New("expired or invalid token")
	ErrNotFound       = errors.New("not found")
)

const (
	detailBadCredentials = "Permission denied Bad credentials"
	detailBadToken       = "Expired or invalid token"
)

// Error is an error reported by a Control4 API, either in the response body
// or by a non-2xx status with no recognisable body
type Error struct {
	StatusCode int
	Code       int
	Message    string
	Details    string

	kind error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("control4 api error (status %d, code %d)", e.StatusCode, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}

	return msg
}

// Is lets errors.Is match the sentinels.  Bad credentials and bad tokens
// both count as unauthorized.
func (e *Error) Is(target error) bool {
	if e.kind == nil {
		return false
	}

	if target == e.kind {
		return true
	}

	return target == ErrUnauthorized && (e.kind == ErrBadCredentials || e.kind == ErrBadToken)
}

func (e *Error) Unwrap() error {
	return e.kind
}

type errorBody struct {
	Code    *FlexInt `json:"code" xml:"code"`
	Details string   `json:"details" xml:"details"`
	Message string   `json:"message" xml:"message"`
}

type errorEnvelope struct {
	C4ErrorResponse *errorBody `json:"C4ErrorResponse"`
	Code            *FlexInt   `json:"code"`
	Details         string     `json:"details"`
	Message         string     `json:"message"`
	Error           *string    `json:"error"`
}

type xmlErrorResponse struct {
	XMLName xml.Name
	errorBody
}

// CheckResponse looks for one of the API error envelopes in a response
// body.  Bodies that are not error envelopes (lists, ordinary objects,
// empty bodies) return nil.
func CheckResponse(body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}

	switch trimmed[0] {
	case '<':
		var x xmlErrorResponse
		if err := xml.Unmarshal(trimmed, &x); err != nil {
			return nil
		}
		if x.XMLName.Local != "C4ErrorResponse" {
			return nil
		}
		return classifyCoded(x.errorBody)

	case '{':
		var env errorEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil
		}

		switch {
		case env.C4ErrorResponse != nil:
			return classifyCoded(*env.C4ErrorResponse)
		case env.Code != nil:
			return classifyCoded(errorBody{Code: env.Code, Details: env.Details, Message: env.Message})
		case env.Error != nil:
			return classifyDirector(*env.Error, env.Details)
		}
	}

	return nil
}

func classifyCoded(b errorBody) error {
	e := &Error{Message: b.Message, Details: b.Details}
	if b.Code != nil {
		e.Code = int(*b.Code)
	}

	switch {
	case b.Details == detailBadCredentials:
		e.kind = ErrBadCredentials
	case e.Code == http.StatusUnauthorized:
		e.kind = ErrUnauthorized
	case e.Code == http.StatusNotFound:
		e.kind = ErrNotFound
	}

	return e
}

func classifyDirector(errText string, details string) error {
	e := &Error{Message: errText, Details: details}

	switch {
	case details == detailBadToken:
		e.kind = ErrBadToken
	case errText == "Unauthorized":
		e.kind = ErrUnauthorized
	}

	return e
}

// statusError is used for a non-2xx response with no error envelope
func statusError(statusCode int, body []byte) error {
	e := &Error{
		StatusCode: statusCode,
		Message:    http.StatusText(statusCode),
		Details:    string(bytes.TrimSpace(body)),
	}

	switch statusCode {
	case http.StatusUnauthorized:
		e.kind = ErrUnauthorized
	case http.StatusNotFound:
		e.kind = ErrNotFound
	}

	return e
}
