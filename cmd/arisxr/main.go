// The arisxr server: WebSocket presence/sync on /ws, AI assist on /api/ask.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/zeeshan-mehdi/ARISXR/server/assist"
	"github.com/zeeshan-mehdi/ARISXR/server/config"
	"github.com/zeeshan-mehdi/ARISXR/server/hub"
	"github.com/zeeshan-mehdi/ARISXR/server/logging"
)

var (
	addr       = pflag.String("addr", "", "listen address (overrides config)")
	configPath = pflag.String("config", "", "path to YAML config file")
)

func main() {
	pflag.Parse()

	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	log := logging.New(cfg.Log)

	h := hub.New(log.With().Str("component", "hub").Logger())
	go h.Run()

	ask := assist.New(cfg.OpenAI, log.With().Str("component", "assist").Logger())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.HandleConn)
	mux.HandleFunc("/api/ask", ask.HandleAsk)

	log.Info().Str("addr", cfg.Server.Addr).Msg("serving")
	if err := http.ListenAndServe(cfg.Server.Addr, mux); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
