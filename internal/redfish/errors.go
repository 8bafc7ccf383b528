package redfish

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Transport and session errors.
var (
	// ErrInvalidProxyAddress is returned when the SOCKS5 proxy address is not
	// in "host:port" form.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrBodyTooLarge is returned when a response body exceeds the configured limit.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")

	// ErrNoSessionToken is returned when a login response lacks X-Auth-Token.
	ErrNoSessionToken = errors.New("session response did not include X-Auth-Token")

	// ErrNoSession is returned by Logout when no session is open.
	ErrNoSession = errors.New("no active session")

	// ErrUnauthorized matches a StatusError with status 401 or 403.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound matches a StatusError with status 404.
	ErrNotFound = errors.New("resource not found")

	// ErrMethodNotAllowed matches a StatusError with status 405.
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// StatusError is returned by Response.Err for non-2xx responses.
type StatusError struct {
	// Method and URL identify the request.
	Method string
	URL    string

	// StatusCode is the HTTP status.
	StatusCode int

	// Code is the Redfish error code (error.code), if the body carried one.
	Code string

	// Message is the Redfish error message. When the service only filled in
	// @Message.ExtendedInfo, the first extended message is used.
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Is lets errors.Is match the status sentinels.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrMethodNotAllowed:
		return e.StatusCode == http.StatusMethodNotAllowed
	default:
		return false
	}
}

// errorBody is the Redfish error payload.
type errorBody struct {
	Error struct {
		Code         string `json:"code"`
		Message      string `json:"message"`
		ExtendedInfo []struct {
			Message string `json:"Message"`
		} `json:"@Message.ExtendedInfo"` //nolint:tagliatelle // Redfish annotation name
	} `json:"error"`
}

// newStatusError builds a StatusError, pulling the message out of a Redfish
// error body when there is one.
func newStatusError(method, url string, status int, body []byte) *StatusError {
	se := &StatusError{Method: method, URL: url, StatusCode: status}

	var eb errorBody
	if len(body) > 0 && json.Unmarshal(body, &eb) == nil {
		se.Code = eb.Error.Code
		se.Message = eb.Error.Message
		if len(eb.Error.ExtendedInfo) > 0 && eb.Error.ExtendedInfo[0].Message != "" {
			if se.Message == "" || se.Message == "A general error has occurred. See ExtendedInfo for more information." {
				se.Message = eb.Error.ExtendedInfo[0].Message
			}
		}
	}
	return se
}
