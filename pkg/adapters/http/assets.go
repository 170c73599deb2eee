package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"github.com/aretw0/relaykit/internal/logging"
	"github.com/aretw0/relaykit/internal/metrics"
	"github.com/aretw0/relaykit/pkg/resource"
)

// DefaultDevURL is the live-reload origin used in Live mode.
const DefaultDevURL = "http://localhost:5173"

// Mode selects how UI assets are served. It is fixed at construction.
type Mode int

const (
	Bundled Mode = iota + 1 // Serve through the resource resolver
	Live                    // Proxy to an external dev origin
)

func (m Mode) String() string {
	switch m {
	case Bundled:
		return "bundled"
	case Live:
		return "live"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bundled", "":
		return Bundled, nil
	case "live", "dev":
		return Live, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

var (
	// ErrUnknownMode is returned for a mode other than Bundled or Live.
	ErrUnknownMode = errors.New("unknown asset mode")
	// ErrInvalidDevURL is returned when Live mode has no usable origin.
	ErrInvalidDevURL = errors.New("invalid dev server url")
)

// AssetServer answers the UI runtime's resource requests.
type AssetServer struct {
	mode     Mode
	resolver *resource.Resolver
	devURL   *url.URL
	proxy    *httputil.ReverseProxy
	fallback http.Handler

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// AssetOption configures an AssetServer.
type AssetOption func(*AssetServer)

// WithAssetLogger configures the logger.
func WithAssetLogger(logger *slog.Logger) AssetOption {
	return func(s *AssetServer) {
		s.logger = logger
	}
}

// WithAssetMetrics counts resolver hits and misses.
func WithAssetMetrics(m *metrics.Metrics) AssetOption {
	return func(s *AssetServer) {
		s.metrics = m
	}
}

// WithFallback replaces the default not-found handling of Bundled mode.
func WithFallback(h http.Handler) AssetOption {
	return func(s *AssetServer) {
		s.fallback = h
	}
}

// NewAssetServer builds the server for mode. Bundled mode needs a resolver; Live mode
// needs an absolute http(s) devURL and never consults the resolver.
func NewAssetServer(mode Mode, resolver *resource.Resolver, devURL string, opts ...AssetOption) (*AssetServer, error) {
	s := &AssetServer{
		mode:     mode,
		fallback: http.NotFoundHandler(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	switch mode {
	case Bundled:
		if resolver == nil {
			return nil, errors.New("bundled mode: resolver is required")
		}
		s.resolver = resolver
	case Live:
		u, err := url.Parse(devURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDevURL, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDevURL, devURL)
		}
		s.devURL = u
		s.proxy = &httputil.ReverseProxy{
			Rewrite: func(pr *httputil.ProxyRequest) {
				pr.SetURL(u)
				pr.SetXForwarded()
			},
			ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
				s.logger.Warn("Dev server unreachable", "url", u.String(), "path", r.URL.Path, "err", err)
				http.Error(w, "dev server unreachable", http.StatusBadGateway)
			},
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
	return s, nil
}

// Mode returns the serving mode.
func (s *AssetServer) Mode() Mode { return s.mode }

// InitialURL is the first navigation target: the server's own root when bundled, the
// dev origin when live.
func (s *AssetServer) InitialURL() string {
	if s.mode == Live {
		return s.devURL.String()
	}
	return "/"
}

func (s *AssetServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.mode == Live {
		s.proxy.ServeHTTP(w, r)
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res, err := s.resolver.Resolve(r.URL.Path)
	if errors.Is(err, resource.ErrNotFound) {
		s.metrics.Resource(false)
		s.fallback.ServeHTTP(w, r)
		return
	}
	if err != nil {
		s.logger.Error("Resource read failed", "path", r.URL.Path, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.metrics.Resource(true)
	w.Header().Set("Content-Type", res.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(res.Data)
	}
}
