package xhttp

import (
	"os"
	"reflect"
	"runtime"
	"slices"
	"strconv"
	"time"

	"github.com/nimasrn/cashback-ledger/pkg/logger"
	"github.com/valyala/fasthttp"
)

// env list:
// XHTTP_SERVER_READ_TIMEOUT
// XHTTP_SERVER_WRITE_TIMEOUT
// XHTTP_SERVER_REQUEST_TIMEOUT
// values are milliseconds

var (
	defaultReadBufferSize  = 1024 * 4
	defaultWriteBufferSize = 1024 * 4
	defaultReadTimeout     = time.Millisecond * 2500
	defaultWriteTimeout    = time.Millisecond * 2500
	defaultRequestTimeout  = time.Millisecond * 5000
)

func init() {
	defaultReadTimeout = envMillis("XHTTP_SERVER_READ_TIMEOUT", defaultReadTimeout)
	defaultWriteTimeout = envMillis("XHTTP_SERVER_WRITE_TIMEOUT", defaultWriteTimeout)
	defaultRequestTimeout = envMillis("XHTTP_SERVER_REQUEST_TIMEOUT", defaultRequestTimeout)
}

func envMillis(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" || raw == "0" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return time.Millisecond * time.Duration(v)
}

var DefaultServerOption = ServerOption{
	IdleTimeout:           time.Second * 10,
	MaxIdleWorkerDuration: time.Minute * 1,
	TCPKeepalivePeriod:    time.Minute * 120,
	MaxRequestBodySize:    1 * 1024 * 1024,
	RequestTimeout:        defaultRequestTimeout,
	ReadBufferSize:        defaultReadBufferSize,
	WriteBufferSize:       defaultWriteBufferSize,
	ReadTimeout:           defaultReadTimeout,
	WriteTimeout:          defaultWriteTimeout,
	Concurrency:           10_000,
	ErrorHandler: func(ctx *RequestCtx, err error) {
		logger.Warn("[xhttp] request error", "error", err)
		ctx.Error(StatusText(StatusBadRequest), StatusBadRequest)
	},
	TCPKeepalive:                 true,
	DisablePreParseMultipartForm: true,
	NoDefaultServerHeader:        true,
	NoDefaultDate:                true,
	NoDefaultContentType:         true,
	CloseOnShutdown:              true,
}

type Server = fasthttp.Server

type ServerOption struct {
	// Handler is replaced by the router when routes are registered.
	Handler RequestHandler

	// Idle keep-alive connections are closed after this long.
	IdleTimeout time.Duration

	MaxIdleWorkerDuration time.Duration
	TCPKeepalivePeriod    time.Duration
	MaxRequestBodySize    int

	// RequestTimeout bounds handler execution through TimeoutMiddleware.
	RequestTimeout time.Duration

	ReadBufferSize               int
	WriteBufferSize              int
	ReadTimeout                  time.Duration
	WriteTimeout                 time.Duration
	Concurrency                  int
	ErrorHandler                 func(ctx *RequestCtx, err error)
	Name                         string
	TCPKeepalive                 bool
	DisablePreParseMultipartForm bool
	NoDefaultServerHeader        bool
	NoDefaultDate                bool
	NoDefaultContentType         bool
	CloseOnShutdown              bool
}

type Engine struct {
	*Router
	*Server
	option ServerOption
	middle []MiddlewareFunc
}

func newServer(options ServerOption) *fasthttp.Server {
	return &fasthttp.Server{
		Handler:                      options.Handler,
		ErrorHandler:                 options.ErrorHandler,
		Name:                         options.Name,
		Concurrency:                  options.Concurrency,
		ReadBufferSize:               options.ReadBufferSize,
		WriteBufferSize:              options.WriteBufferSize,
		ReadTimeout:                  options.ReadTimeout,
		WriteTimeout:                 options.WriteTimeout,
		IdleTimeout:                  options.IdleTimeout,
		MaxIdleWorkerDuration:        options.MaxIdleWorkerDuration,
		TCPKeepalivePeriod:           options.TCPKeepalivePeriod,
		MaxRequestBodySize:           options.MaxRequestBodySize,
		TCPKeepalive:                 options.TCPKeepalive,
		DisablePreParseMultipartForm: options.DisablePreParseMultipartForm,
		NoDefaultServerHeader:        options.NoDefaultServerHeader,
		NoDefaultDate:                options.NoDefaultDate,
		NoDefaultContentType:         options.NoDefaultContentType,
		CloseOnShutdown:              options.CloseOnShutdown,
		Logger:                       logger.GetLogger(),
	}
}

func NewServer(options ServerOption) *Engine {
	return &Engine{
		Server: newServer(options),
		Router: CreateDefaultRouter(),
		option: options,
	}
}

func CreateServer() *Engine {
	return NewServer(DefaultServerOption)
}

// RequestTimeout is the handler deadline the engine was configured with.
func (e *Engine) RequestTimeout() time.Duration {
	return e.option.RequestTimeout
}

func (e *Engine) ListenAndServe(addr string) error {
	e.DoRouting()
	logger.Info("[xhttp] server is listening", "addr", addr)
	return e.Server.ListenAndServe(addr)
}

// Handler returns the routed handler wrapped in the registered middleware.
func (e *Engine) Handler() RequestHandler {
	h := e.Router.Handler
	middle := slices.Clone(e.middle)
	slices.Reverse(middle)
	for _, m := range middle {
		h = m(h)
	}
	return h
}

func (e *Engine) DoRouting() {
	for method, routes := range e.Router.List() {
		for _, r := range routes {
			logger.Debug("[xhttp] route registered", "method", method, "path", r)
		}
	}
	for i, m := range e.middle {
		logger.Debug("[xhttp] middleware registered", "index", i+1, "name", runtime.FuncForPC(reflect.ValueOf(m).Pointer()).Name())
	}
	e.Server.Handler = e.Handler()
}

// Use appends middleware to the chain. The first registered middleware is the
// outermost one.
func (e *Engine) Use(middleware MiddlewareFunc) {
	e.middle = append(e.middle, middleware)
}

// Shutdown stops accepting connections and waits for active requests.
func (e *Engine) Shutdown() error {
	logger.Info("[xhttp] server is shutting down", "pid", os.Getpid())
	if err := e.Server.Shutdown(); err != nil {
		logger.Error("[xhttp] error while shutting down", "error", err)
		return err
	}
	return nil
}
