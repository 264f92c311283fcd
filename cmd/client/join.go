package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Kidhurshan/Meetly-Video-Conferencing-App/internal/capture"
	"github.com/Kidhurshan/Meetly-Video-Conferencing-App/internal/config"
	"github.com/Kidhurshan/Meetly-Video-Conferencing-App/internal/ids"
	"github.com/Kidhurshan/Meetly-Video-Conferencing-App/internal/peerlink"
	"github.com/Kidhurshan/Meetly-Video-Conferencing-App/internal/session"
	"github.com/Kidhurshan/Meetly-Video-Conferencing-App/internal/tui"
)

var flagName string

var joinCmd = &cobra.Command{
	Use:   "join [room-code]",
	Short: "Join a meeting room, creating it if needed",
	Long: `Join the room with the given code. When no code is given a fresh
room is created; share its code with the other participants.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJoin,
}

func init() {
	joinCmd.Flags().StringVarP(&flagName, "name", "n", "", "display name shown to other participants")
	joinCmd.MarkFlagRequired("name")
}

func runJoin(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.Options{
		ServerURL:  flagServer,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
	})
	if err != nil {
		return err
	}

	var roomID string
	if len(args) == 1 {
		roomID = strings.ToUpper(args[0])
	} else {
		roomID = ids.NewRoomCode()
		fmt.Printf("Created room %s — share this code to invite others.\n", roomID)
	}

	adapter := peerlink.NewPion(peerlink.ICEOptions{
		STUNServers: cfg.GetSTUNServers(),
		TURNServers: cfg.GetTURNServers(),
		TURNUser:    cfg.TURNUser,
		TURNPass:    cfg.TURNPass,
	})

	ctrl, err := session.New(session.Config{
		RoomID:    roomID,
		UserID:    ids.NewUserID(),
		UserName:  flagName,
		ServerURL: cfg.ServerURL,
		Device:    &capture.Synthetic{},
		Adapter:   adapter,
	})
	if err != nil {
		return err
	}

	if err := ctrl.Start(cmd.Context()); err != nil {
		return fmt.Errorf("could not join room %s: %w", roomID, err)
	}

	p := tea.NewProgram(tui.New(ctrl, roomID, flagName), tea.WithAltScreen())
	_, runErr := p.Run()

	// The TUI normally tears the session down itself; make sure.
	ctrl.Leave()

	printSummary(roomID, ctrl)
	return runErr
}

func printSummary(roomID string, ctrl *session.Controller) {
	stats := ctrl.Stats()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendRow(table.Row{"Room", roomID})
	t.AppendRow(table.Row{"Peers seen", stats.PeersSeen})
	t.AppendRow(table.Row{"Messages sent", stats.MessagesSent})
	t.AppendRow(table.Row{"Messages received", stats.MessagesReceived})
	t.AppendRow(table.Row{"Duration", time.Since(stats.StartedAt).Round(time.Second)})
	t.Render()
}
