/*
File: server.go
Version: 4.0.0
Description: Listener orchestration for the API (HTTP/1.1 + h2c, HTTPS, HTTP/3) and the
             optional DNS sinkhole (UDP and TCP).
*/

package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// ServerShutdowner interface for graceful shutdown
type ServerShutdowner interface {
	Shutdown(ctx context.Context) error
	String() string
}

// DNSServerWrapper wraps dns.Server to implement ServerShutdowner
type DNSServerWrapper struct {
	*dns.Server
}

func (w *DNSServerWrapper) Shutdown(ctx context.Context) error {
	return w.Server.ShutdownContext(ctx)
}

func (w *DNSServerWrapper) String() string {
	return fmt.Sprintf("Protocol: DNS/%s | Addr: %s", strings.ToUpper(w.Net), w.Addr)
}

// HTTPServerWrapper wraps http.Server to implement ServerShutdowner
type HTTPServerWrapper struct {
	*http.Server
	label string
}

func (w *HTTPServerWrapper) Shutdown(ctx context.Context) error {
	return w.Server.Shutdown(ctx)
}

func (w *HTTPServerWrapper) String() string {
	return fmt.Sprintf("Protocol: %s | Addr: %s", w.label, w.Addr)
}

// HTTP3ServerWrapper wraps http3.Server to implement ServerShutdowner
type HTTP3ServerWrapper struct {
	*http3.Server
}

func (w *HTTP3ServerWrapper) Shutdown(ctx context.Context) error {
	return w.Server.Close()
}

func (w *HTTP3ServerWrapper) String() string {
	return fmt.Sprintf("Protocol: HTTP/3 (QUIC/0-RTT) | Addr: %s", w.Addr)
}

func loadTLSConfig(cfg ServerConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		NextProtos:   []string{"h2", "http/1.1"},
	}, nil
}

// startServers launches every configured listener and returns them for shutdown.
// dnsHandler may be nil when the sinkhole is disabled.
func startServers(wg *sync.WaitGroup, cfg *Config, handler http.Handler, dnsHandler dns.Handler) ([]ServerShutdowner, error) {
	var servers []ServerShutdowner

	readTimeout := cfg.Server.parsedTimeout
	if readTimeout <= 0 {
		readTimeout = defaultServerTimeout
	}

	for _, addr := range cfg.Server.Listen {
		wg.Add(1)
		srv := &http.Server{
			Addr:              addr,
			Handler:           h2c.NewHandler(handler, &http2.Server{}),
			ReadHeaderTimeout: readTimeout,
		}
		wrapper := &HTTPServerWrapper{Server: srv, label: "HTTP (HTTP/1.1&h2c)"}

		go func() {
			defer wg.Done()
			LogInfo("Starting Server [%s]", wrapper.String())
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				LogError("Server [%s] stopped: %v", wrapper.String(), err)
			}
		}()
		servers = append(servers, wrapper)
	}

	if len(cfg.Server.ListenTLS) > 0 {
		tlsConfig, err := loadTLSConfig(cfg.Server)
		if err != nil {
			return servers, err
		}

		for _, addr := range cfg.Server.ListenTLS {
			wg.Add(1)
			srv := &http.Server{
				Addr:              addr,
				Handler:           handler,
				TLSConfig:         tlsConfig,
				ReadHeaderTimeout: readTimeout,
			}
			wrapper := &HTTPServerWrapper{Server: srv, label: "HTTPS (HTTP/1.1&2)"}

			go func() {
				defer wg.Done()
				LogInfo("Starting Server [%s]", wrapper.String())
				if err := srv.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
					LogError("Server [%s] stopped: %v", wrapper.String(), err)
				}
			}()
			servers = append(servers, wrapper)

			if !cfg.Server.HTTP3 {
				continue
			}
			wg.Add(1)
			h3Server := &http3.Server{
				Addr:      addr,
				Handler:   handler,
				TLSConfig: tlsConfig.Clone(),
				QuicConfig: &quic.Config{
					Allow0RTT:      true,
					MaxIdleTimeout: 30 * time.Second,
				},
			}
			h3Wrapper := &HTTP3ServerWrapper{h3Server}

			go func() {
				defer wg.Done()
				LogInfo("Starting Server [%s]", h3Wrapper.String())
				if err := h3Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					LogError("Server [%s] stopped: %v", h3Wrapper.String(), err)
				}
			}()
			servers = append(servers, h3Wrapper)
		}
	}

	if dnsHandler == nil {
		return servers, nil
	}
	for _, addr := range cfg.DNS.Listen {
		for _, network := range []string{"udp", "tcp"} {
			wg.Add(1)
			dnsServer := &dns.Server{Addr: addr, Net: network, Handler: dnsHandler}
			wrapper := &DNSServerWrapper{dnsServer}

			go func() {
				defer wg.Done()
				LogInfo("Starting Server [%s]", wrapper.String())
				if err := dnsServer.ListenAndServe(); err != nil {
					LogError("Server [%s] stopped: %v", wrapper.String(), err)
				}
			}()
			servers = append(servers, wrapper)
		}
	}

	return servers, nil
}

// shutdownServers stops every listener, waiting at most timeout overall.
func shutdownServers(servers []ServerShutdowner, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Shutdown(ctx); err != nil {
				LogWarn("Server [%s] shutdown error: %v", s.String(), err)
			}
		}()
	}
	wg.Wait()
}
