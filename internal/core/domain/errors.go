package domain

import "errors"

// Failure kinds surfaced at the orchestration boundary. Network causes are
// wrapped underneath these and never shown to the user directly.
var (
	ErrAuthInit                  = errors.New("domain: auth init failed")
	ErrAuthCallback              = errors.New("domain: auth callback failed")
	ErrNotAuthenticated          = errors.New("domain: not authenticated")
	ErrFetch                     = errors.New("domain: fetch recommendations failed")
	ErrPublish                   = errors.New("domain: create playlist failed")
	ErrSensorUnavailable         = errors.New("domain: heart-rate sensor unavailable")
	ErrSensorAuthorizationDenied = errors.New("domain: heart-rate sensor authorization denied")
	ErrSensorSample              = errors.New("domain: heart-rate sample failed")
)

var (
	ErrNotFound         = errors.New("domain: not found")
	ErrCodeConsumed     = errors.New("domain: authorization code already consumed")
	ErrSuperseded       = errors.New("domain: superseded by a newer request")
	ErrFetchInProgress  = errors.New("domain: recommendations are loading")
	ErrNothingToPublish = errors.New("domain: no recommendations to publish")
	ErrUnknownActivity  = errors.New("domain: unknown activity")
)

const (
	MsgFetchFailed      = "Failed to fetch recommendations. Ensure you are logged in."
	MsgPublishFailed    = "Failed to create playlist. Ensure you are logged in."
	MsgNotAuthenticated = "Ensure you are logged in."
	MsgAuthInitFailed   = "Failed to initiate login."
	MsgCallbackFailed   = "Failed to authenticate with the music service."
	MsgSensorFailed     = "Could not read heart rate."
	MsgFetchInProgress  = "Recommendations are still loading."
)

// UserMessage returns the advisory text shown for err. Fetch and publish
// failures deliberately read the same whether the cause was auth or network.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFetchInProgress):
		return MsgFetchInProgress
	case errors.Is(err, ErrFetch):
		return MsgFetchFailed
	case errors.Is(err, ErrPublish):
		return MsgPublishFailed
	case errors.Is(err, ErrAuthInit):
		return MsgAuthInitFailed
	case errors.Is(err, ErrAuthCallback):
		return MsgCallbackFailed
	case errors.Is(err, ErrNotAuthenticated):
		return MsgNotAuthenticated
	case errors.Is(err, ErrSensorUnavailable),
		errors.Is(err, ErrSensorAuthorizationDenied),
		errors.Is(err, ErrSensorSample):
		return MsgSensorFailed
	default:
		return "Something went wrong."
	}
}
