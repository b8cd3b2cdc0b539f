// Package landingboard caches the status endpoints of a compute/deployment
// platform and serves them to dashboards as one JSON document.
//
// A [Board] runs four pollers (status, capacities, stats, jobs), each on its
// own fixed interval. Pollers hand results to a single aggregator, which is
// the only writer of the in-memory snapshot. The HTTP layer reads the
// snapshot and serves it at "/":
//
//	{"date": "...", "status": {...}, "capacities": {...}, "stats": {...}, "jobs": {...}}
//
// The jobs endpoint requires a bearer token obtained through an OIDC
// password grant; the token is cached and refreshed once it is older than
// the configured TTL (one hour by default).
//
// Upstream documents are opaque. They are checked to be JSON and otherwise
// passed through unchanged. A category whose upstream keeps failing simply
// stops updating; the other categories are unaffected.
//
// # Quick Start
//
//	board, err := landingboard.New(
//	    landingboard.WithAPIURL("https://api.example.com"),
//	    landingboard.WithCredentials(landingboard.Credentials{
//	        TokenURL:     "https://idp.example.com/realms/x/protocol/openid-connect/token",
//	        ClientID:     "landing",
//	        ClientSecret: os.Getenv("oidc_secret"),
//	        Username:     "svc-landing",
//	        Password:     os.Getenv("password"),
//	    }),
//	)
//	if err != nil {
//	    slog.Error("failed to create board", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	if err := board.Start(ctx); err != nil { // blocks until ctx is cancelled
//	    slog.Error("board stopped", "error", err)
//	}
package landingboard
