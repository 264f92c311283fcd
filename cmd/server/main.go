package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"

	"github.com/Kidhurshan/Meetly-Video-Conferencing-App/internal/logging"
	"github.com/Kidhurshan/Meetly-Video-Conferencing-App/internal/server"
	"github.com/Kidhurshan/Meetly-Video-Conferencing-App/internal/signaling"
)

func main() {
	addr := flag.String("addr", defaultAddr(), "listen address")
	flag.Parse()

	logging.Init(slog.LevelInfo)

	// Create the hub and start its event loop. The hub goroutine is
	// the only owner of room state.
	hub := signaling.NewHub()
	go hub.Run()

	http.HandleFunc("/health", server.Health)
	http.HandleFunc("/ws", server.ServeWs(hub))

	slog.Info("starting signaling server", "addr", *addr)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func defaultAddr() string {
	if a := os.Getenv("MEETLY_ADDR"); a != "" {
		return a
	}
	return ":3001"
}
