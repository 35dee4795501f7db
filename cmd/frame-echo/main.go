// frame-echo is a minimal frame host speaking the channel wire contract over
// a websocket endpoint. It acknowledges every handshake, answers every
// request by echoing the call descriptor, and reflects application events.
// It is designed for demos and end-to-end tests that need a real host
// counterpart without product host semantics.
//
// Usage:
//
//	frame-echo                      # listen on :8420
//	frame-echo -config echo.json    # load settings from a JSON file
//	frame-echo -listen :9000        # override the listen address
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/framechan/framechan/internal/echohost"
)

type config struct {
	ListenAddr    string `json:"listen_addr"`
	FailSubstring string `json:"fail_substring"`
	DelayMS       int    `json:"delay_ms"`
}

func defaultConfig() config {
	cfg := config{ListenAddr: ":8420"}
	if addr := os.Getenv("FRAME_ECHO_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	return cfg
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return config{}, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(content, &cfg); err != nil {
		return config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8420"
	}
	return cfg, nil
}

func main() {
	configPath := flag.String("config", "", "path to JSON config file")
	listen := flag.String("listen", "", "listen address (overrides config)")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Error("config", "err", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}

	host := echohost.New(echohost.Options{
		FailSubstring: cfg.FailSubstring,
		Delay:         time.Duration(cfg.DelayMS) * time.Millisecond,
		Logger:        log,
	})

	log.Info("frame-echo listening", "addr", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, host.Router()); err != nil {
		log.Error("serve", "err", err)
		os.Exit(1)
	}
}
