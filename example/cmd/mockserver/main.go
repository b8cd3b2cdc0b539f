// Standalone mock platform for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/landingboard serve --env-file example/mock.env
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/jpalmerr/landingboard/example/mockplatform"
)

func main() {
	fmt.Println("Mock platform starting on :9999")
	fmt.Println("Node states and jobs drift every few seconds")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := http.ListenAndServe(":9999", mockplatform.New(logger).Handler()); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
