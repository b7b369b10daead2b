package bus

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

const readyTimeout = 10 * time.Second

// EmbeddedServer runs the NATS server in-process so one binary carries
// its own bus. No JetStream: the bus only notifies, durability lives
// in the message store.
type EmbeddedServer struct {
	server *server.Server
}

// StartEmbeddedServer boots the server and blocks until it accepts
// connections. Port -1 picks a free port, which is what tests use.
func StartEmbeddedServer(host string, port int) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName: "cinematch-bus",
		Host:       host,
		Port:       port,
		NoLog:      true,
		NoSigs:     true,
	}
	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create bus server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("bus server not ready within %s", readyTimeout)
	}
	return &EmbeddedServer{server: ns}, nil
}

// ClientURL is the address clients connect to.
func (s *EmbeddedServer) ClientURL() string {
	return s.server.ClientURL()
}

// Subscriptions reports how many subscriptions the server carries.
// Tests use it to wait until a consumer is actually wired before
// publishing, since plain NATS drops what nobody listens to.
func (s *EmbeddedServer) Subscriptions() int {
	return int(s.server.NumSubscriptions())
}

// Shutdown stops the server and waits for it to wind down.
func (s *EmbeddedServer) Shutdown() {
	s.server.Shutdown()
	s.server.WaitForShutdown()
}
