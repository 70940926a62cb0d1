package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"flyvemdm/backend/global"
)

// RunHTTPServer serves handler until ctx is canceled, then drains in-flight
// requests for up to ten seconds.
func RunHTTPServer(ctx context.Context, host string, port int, handler http.Handler) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort(host, fmt.Sprintf("%d", port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// queries wait up to attempts x interval for the device
		WriteTimeout: 60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		global.Logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
