package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jpalmerr/landingboard"
	"github.com/jpalmerr/landingboard/example/mockplatform"
)

func main() {
	// serve the mock platform on an ephemeral port
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		slog.Error("failed to listen", "error", err)
		os.Exit(1)
	}
	go func() {
		_ = http.Serve(ln, mockplatform.New(nil).Handler())
	}()
	platformURL := "http://" + ln.Addr().String()

	board, err := landingboard.New(
		landingboard.WithAPIURL(platformURL),
		landingboard.WithCredentials(landingboard.Credentials{
			TokenURL:     platformURL + "/token",
			ClientID:     mockplatform.ClientID,
			ClientSecret: mockplatform.ClientSecret,
			Username:     mockplatform.Username,
			Password:     mockplatform.Password,
		}),
		landingboard.WithPort(8080),
		landingboard.WithUpdateCallback(func(u landingboard.Update) {
			if u.Category == landingboard.CategoryJobs {
				slog.Debug("jobs updated", "size", len(u.Document))
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create landingboard", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  landingboard demo")
	fmt.Println()
	fmt.Println("  Snapshot:  http://localhost:8080/")
	fmt.Println("  Liveness:  http://localhost:8080/healthz")
	fmt.Println("  Metrics:   http://localhost:8080/metrics")
	fmt.Printf("  Platform:  %s (mock)\n", platformURL)
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := board.Start(ctx); err != nil {
		slog.Error("landingboard error", "error", err)
		os.Exit(1)
	}
}
