package openai

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/imroc/req/v3"

	"github.com/studio1767/filesync/internal/remote"
)

var ErrNoAPIKey = errors.New("openai: api key missing")

// APIError is the error body returned by the API.
type APIError struct {
	Detail struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (e *APIError) Error() string {
	if e.Detail.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Detail.Message, e.Detail.Code)
	}
	return e.Detail.Message
}

// handleAPIError turns a transport failure or an error response into a
// remote error. When rejectBadRequest is set a 400 means the store refused
// the content, not that the call should be retried.
func handleAPIError(resp *req.Response, requestErr error, op, name string, rejectBadRequest bool) error {
	if requestErr != nil {
		status := 0
		if resp != nil {
			status = resp.GetStatusCode()
		}
		return &remote.Error{Op: op, StatusCode: status, Err: requestErr}
	}

	if !resp.IsErrorState() {
		return nil
	}

	var cause error = fmt.Errorf("unexpected response: %s", resp.Status)
	if apiErr, ok := resp.ErrorResult().(*APIError); ok && apiErr.Detail.Message != "" {
		cause = apiErr
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &remote.Error{Op: op, StatusCode: resp.StatusCode, Err: remote.ErrNotFound}
	case resp.StatusCode == http.StatusBadRequest && rejectBadRequest:
		return &remote.RejectedError{Name: name, Reason: cause.Error()}
	}

	return &remote.Error{Op: op, StatusCode: resp.StatusCode, Err: cause}
}
