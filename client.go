package main

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/tonimelisma/casefill/internal/caramel"
	"github.com/tonimelisma/casefill/internal/config"
	"github.com/tonimelisma/casefill/internal/converge"
)

// serverAddr renders host:port for banners and the run log.
func serverAddr(s *config.ServerConfig) string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// newHTTPClient builds the transport shared by all requests of a run. The
// connection pool is sized for the widest worker pool so folders do not
// queue on idle connections.
func newHTTPClient(n *config.NetworkConfig) *http.Client {
	dialer := &net.Dialer{Timeout: n.ConnectTimeoutDuration()}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.MaxIdleConnsPerHost = converge.MaxConcurrency

	return &http.Client{
		Transport: transport,
		Timeout:   n.RequestTimeoutDuration(),
	}
}

// newCaramelClient builds the service client from resolved configuration.
func newCaramelClient(cfg *config.Config, logger *slog.Logger) *caramel.Client {
	return caramel.NewClient(
		"http://"+serverAddr(&cfg.Server),
		newHTTPClient(&cfg.Network),
		caramel.Credentials{Username: cfg.Server.Username, Password: cfg.Server.Password},
		logger,
		cfg.Network.UserAgent,
		caramel.WithMaxRetries(cfg.Network.MaxRetries),
		caramel.WithRateLimit(cfg.Network.RequestsPerSecond),
	)
}
