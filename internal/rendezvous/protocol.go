package rendezvous

import (
	"github.com/yndnr/trainmesh-go/internal/channel"
	"github.com/yndnr/trainmesh-go/internal/core/domain"
)

// Kind is a rendezvous request kind.
type Kind string

const (
	KindAddress Kind = "address"
	KindConnect Kind = "connect"
)

// Status values of a Reply.
const (
	StatusOK        = "ok"
	StatusOffer     = "offer"
	StatusConnected = "connected"
	StatusError     = "error"
)

// Request is one worker request.
type Request struct {
	Kind     Kind   `json:"kind"`
	WorkerID string `json:"worker_id,omitempty"`
}

// Reply is the coordinator's answer to a Request.
type Reply struct {
	Status  string         `json:"status"`
	Address string         `json:"address,omitempty"`
	Offer   *channel.Offer `json:"offer,omitempty"`
	Code    string         `json:"code,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func errorReply(err error) Reply {
	code := domain.GetErrorCode(err)
	if code == "" {
		code = domain.ErrProtocol.Code
	}
	return Reply{Status: StatusError, Code: code, Error: err.Error()}
}

// Err rebuilds the coordinator's error from an error reply. The result
// matches the original sentinel with errors.Is.
func (r Reply) Err() error {
	if r.Status != StatusError {
		return nil
	}
	return &domain.DomainError{Code: r.Code, Message: "coordinator", Details: r.Error}
}

// metricKind bounds the label values of the request counter.
func metricKind(k Kind) string {
	switch k {
	case KindAddress, KindConnect:
		return string(k)
	default:
		return "unsupported"
	}
}
