package httpserver

import (
	"net/http"
	"time"
)

// WriteMargin separates the slowest handler deadline from the connection
// write deadline, which starts when the request headers are read.
const WriteMargin = 15 * time.Second

// New builds an HTTP server for handlers that may hold a connection for up to
// handlerBudget. The write deadline outlasts it so a handler that runs to its
// own deadline can still write its response.
func New(addr string, handler http.Handler, handlerBudget time.Duration) *http.Server {
	write := handlerBudget + WriteMargin
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      write,
		IdleTimeout:       max(120*time.Second, write),
	}
}
