package xhttp

import (
	"crypto/tls"
	"net"
	"os"
	"reflect"
	"runtime"
	"slices"
	"strconv"
	"time"

	"github.com/oneclick/wa-gateway/pkg/logger"
	"github.com/valyala/fasthttp"
)

var (
	defaultReadBufferSize  = 1024 * 4
	defaultWriteBufferSize = 1024 * 4
	defaultReadTimeout     = time.Millisecond * 2500
	defaultWriteTimeout    = time.Millisecond * 2500
	defaultRequestTimeout  = time.Millisecond * 5000
)

// Timeouts and buffer sizes can be overridden per deployment without a
// config change:
//
//	XHTTP_SERVER_READ_TIMEOUT_MS
//	XHTTP_SERVER_WRITE_TIMEOUT_MS
//	XHTTP_SERVER_REQUEST_TIMEOUT_MS
//	XHTTP_SERVER_READ_BUFFER_BYTE
//	XHTTP_SERVER_WRITE_BUFFER_BYTE
func init() {
	if v := envInt("XHTTP_SERVER_READ_TIMEOUT_MS"); v > 0 {
		defaultReadTimeout = time.Millisecond * time.Duration(v)
	}
	if v := envInt("XHTTP_SERVER_WRITE_TIMEOUT_MS"); v > 0 {
		defaultWriteTimeout = time.Millisecond * time.Duration(v)
	}
	if v := envInt("XHTTP_SERVER_REQUEST_TIMEOUT_MS"); v > 0 {
		defaultRequestTimeout = time.Millisecond * time.Duration(v)
	}
	if v := envInt("XHTTP_SERVER_READ_BUFFER_BYTE"); v > 1024 {
		defaultReadBufferSize = v
	}
	if v := envInt("XHTTP_SERVER_WRITE_BUFFER_BYTE"); v > 1024 {
		defaultWriteBufferSize = v
	}
}

func envInt(name string) int {
	raw := os.Getenv(name)
	if raw == "" || raw == "0" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}

var DefaultServerOption = ServerOption{
	Handler: func(ctx *RequestCtx) {
		ctx.Error(StatusText(StatusNotFound), StatusNotFound)
	},
	IdleTimeout:           time.Second * 10,
	MaxIdleWorkerDuration: time.Minute * 1,
	TCPKeepalivePeriod:    time.Minute * 120,
	MaxRequestBodySize:    4 * 1024 * 1024,
	RequestTimeout:        defaultRequestTimeout,
	ReadBufferSize:        defaultReadBufferSize, // also caps the header size
	WriteBufferSize:       defaultWriteBufferSize,
	ReadTimeout:           defaultReadTimeout,
	WriteTimeout:          defaultWriteTimeout,
	Concurrency:           30_000,
	// 0 means unlimited for both
	MaxConnsPerIP:      10_000,
	MaxRequestsPerConn: 0,
	ErrorHandler: func(ctx *RequestCtx, err error) {
		ctx.Logger().Printf("[xhttp] error: %s", err)
	},
	DisableKeepalive:                   false,
	TCPKeepalive:                       true,
	ReduceMemoryUsage:                  false,
	GetOnly:                            false,
	DisablePreParseMultipartForm:       true,
	LogAllErrors:                       true,
	SecureErrorLogMessage:              false,
	DisableHeaderNamesNormalizing:      false,
	SleepWhenConcurrencyLimitsExceeded: 100,
	NoDefaultServerHeader:              true,
	NoDefaultDate:                      true,
	NoDefaultContentType:               true,
	KeepHijackedConns:                  false,
	CloseOnShutdown:                    true,
	StreamRequestBody:                  false,
	ConnState:                          nil,
	Logger:                             logger.GetLogger(),
	TLSConfig:                          nil,
	CompressionLevel:                   fasthttp.CompressBestSpeed,
}

type RequestHeader = fasthttp.RequestHeader
type ResponseHeader = fasthttp.ResponseHeader
type Server = fasthttp.Server

// ServerOption mirrors the fasthttp server knobs this repo actually
// tunes, plus the request timeout applied by TimeoutMiddleware.
type ServerOption struct {
	Handler RequestHandler

	// Idle connections held open too long exhaust file descriptors.
	IdleTimeout time.Duration

	MaxIdleWorkerDuration time.Duration
	TCPKeepalivePeriod    time.Duration

	// Caps webhook and API payloads.
	MaxRequestBodySize int

	RequestTimeout time.Duration

	// Per-connection read buffer, which also bounds header size.
	ReadBufferSize  int
	WriteBufferSize int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Maximum concurrent connections served.
	Concurrency int

	MaxConnsPerIP      int
	MaxRequestsPerConn int

	ErrorHandler                       func(ctx *RequestCtx, err error)
	HeaderReceived                     func(header *RequestHeader) fasthttp.RequestConfig
	ContinueHandler                    func(header *RequestHeader) bool
	Name                               string
	DisableKeepalive                   bool
	TCPKeepalive                       bool
	ReduceMemoryUsage                  bool
	GetOnly                            bool
	DisablePreParseMultipartForm       bool
	LogAllErrors                       bool
	SecureErrorLogMessage              bool
	DisableHeaderNamesNormalizing      bool
	SleepWhenConcurrencyLimitsExceeded time.Duration
	NoDefaultServerHeader              bool
	NoDefaultDate                      bool
	NoDefaultContentType               bool
	KeepHijackedConns                  bool
	CloseOnShutdown                    bool
	StreamRequestBody                  bool
	ConnState                          func(net.Conn, fasthttp.ConnState)
	Logger                             logger.Logger
	TLSConfig                          *tls.Config
	CompressionLevel                   int
	AccessLog                          bool
}

type Engine struct {
	*Router
	*Server
	option ServerOption
	middle []MiddlewareFunc
}

func newServer(options ServerOption) *fasthttp.Server {
	return &fasthttp.Server{
		Handler:                            options.Handler,
		ErrorHandler:                       options.ErrorHandler,
		HeaderReceived:                     options.HeaderReceived,
		ContinueHandler:                    options.ContinueHandler,
		Name:                               options.Name,
		Concurrency:                        options.Concurrency,
		ReadBufferSize:                     options.ReadBufferSize,
		WriteBufferSize:                    options.WriteBufferSize,
		ReadTimeout:                        options.ReadTimeout,
		WriteTimeout:                       options.WriteTimeout,
		IdleTimeout:                        options.IdleTimeout,
		MaxConnsPerIP:                      options.MaxConnsPerIP,
		MaxRequestsPerConn:                 options.MaxRequestsPerConn,
		MaxIdleWorkerDuration:              options.MaxIdleWorkerDuration,
		TCPKeepalivePeriod:                 options.TCPKeepalivePeriod,
		MaxRequestBodySize:                 options.MaxRequestBodySize,
		DisableKeepalive:                   options.DisableKeepalive,
		TCPKeepalive:                       options.TCPKeepalive,
		ReduceMemoryUsage:                  options.ReduceMemoryUsage,
		GetOnly:                            options.GetOnly,
		DisablePreParseMultipartForm:       options.DisablePreParseMultipartForm,
		LogAllErrors:                       options.LogAllErrors,
		SecureErrorLogMessage:              options.SecureErrorLogMessage,
		DisableHeaderNamesNormalizing:      options.DisableHeaderNamesNormalizing,
		SleepWhenConcurrencyLimitsExceeded: options.SleepWhenConcurrencyLimitsExceeded,
		NoDefaultServerHeader:              options.NoDefaultServerHeader,
		NoDefaultDate:                      options.NoDefaultDate,
		NoDefaultContentType:               options.NoDefaultContentType,
		KeepHijackedConns:                  options.KeepHijackedConns,
		CloseOnShutdown:                    options.CloseOnShutdown,
		StreamRequestBody:                  options.StreamRequestBody,
		ConnState:                          options.ConnState,
		Logger:                             options.Logger,
		TLSConfig:                          options.TLSConfig,
	}
}

func NewServer(options ServerOption) *Engine {
	return &Engine{
		Server: newServer(options),
		Router: NewRouter(),
		option: options,
	}
}

func (e *Engine) ListenAndServe(addr string) error {
	if err := e.bindRoutes(); err != nil {
		return err
	}
	e.Server.Logger.Printf("[xhttp] server is listening on %s", addr)
	return e.Server.ListenAndServe(addr)
}

// bindRoutes installs the router handler and wraps it with the
// registered middleware. Middlewares run in the order they were added.
func (e *Engine) bindRoutes() error {
	for method, route := range e.Router.List() {
		for _, r := range route {
			e.Server.Logger.Printf("[xhttp] method: %s, path: %s", method, r)
		}
	}
	e.Server.Handler = e.Router.Handler

	chain := slices.Clone(e.middle)
	slices.Reverse(chain)
	for i, m := range chain {
		e.Server.Handler = m(e.Server.Handler)
		e.Server.Logger.Printf("[xhttp] middleware %d registered - %s",
			i+1, runtime.FuncForPC(reflect.ValueOf(m).Pointer()).Name())
	}
	return nil
}

// Use appends middleware to the chain run for every request.
func (e *Engine) Use(middleware MiddlewareFunc) {
	e.middle = append(e.middle, middleware)
}

// Shutdown drains active connections and stops the server.
func (e *Engine) Shutdown() {
	e.Server.Logger.Printf("[xhttp] server is shutting down, process id: %d", os.Getpid())
	if err := e.Server.Shutdown(); err != nil {
		e.Server.Logger.Printf("[xhttp] error while shutting down: %v", err)
	}
}
