package transport

import (
	"go.uber.org/zap"

	"github.com/luma/courier/protocol"
)

// Handler turns one decoded request into its reply. The relay's command
// dispatch plugs in here.
type Handler interface {
	Handle(req protocol.Message) (protocol.Message, error)
}

type Options struct {
	// Host to listen on
	Host string

	// Port to listen on
	Port int

	// Reuseport sets SO_REUSEADDR/SO_REUSEPORT on the listening socket
	// so a restarted relay does not trip over sockets in TIME_WAIT.
	Reuseport bool

	// Handler receives every completed request and produces the reply
	Handler Handler

	Log *zap.Logger
}
