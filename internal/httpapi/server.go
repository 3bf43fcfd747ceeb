package httpapi

import (
	"log/slog"
	"net/http"
	"time"
)

const readHeaderTimeout = 10 * time.Second

func NewServer(addr string, handler http.Handler, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &http.Server{
		Addr:              addr,
		Handler:           requestLogger(logger, handler),
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
