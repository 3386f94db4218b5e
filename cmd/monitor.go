// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/noolite/pkg/mtrf"
)

var monitorShowAll bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI showing events per channel",
	Long: `Monitor remotes and sensors bound to the transceiver in a terminal UI.

Shows one row per active channel with the last event, the sender id and the
number of events, link statistics, and a scrolling event log. Channels named
in the config file are labelled with the device or sensor name.

Press 'q' to quit, 'c' to clear the log.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorShowAll, "show-all", false, "Log repeated temperature/humidity readings too")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctl, adapter, connInfo, err := openController()
	if err != nil {
		return err
	}
	defer ctl.Close()

	m := newMonitorModel(connInfo, channelNames(), adapter.Stats, monitorShowAll)
	p := tea.NewProgram(m, tea.WithAltScreen())

	ctl.Subscribe(func(ev mtrf.Event) {
		p.Send(monitorEventMsg{event: ev})
	})
	go func() {
		<-adapter.Lost()
		p.Send(monitorLostMsg{err: adapter.Err()})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	fmt.Print(adapter.Stats())
	return nil
}

// channelNames labels channels with the configured device and sensor names
func channelNames() map[uint8]string {
	names := make(map[uint8]string)
	for _, d := range cfg.Devices {
		if d.Channel != nil {
			names[*d.Channel] = d.Name
		}
	}
	for _, s := range cfg.Sensors {
		names[s.Channel] = s.Name
	}
	return names
}
