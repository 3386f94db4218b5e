// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/noolite/pkg/mtrf"
)

var (
	packetTestTimeout int
	packetTestChannel int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid MTRF-64 frame",
	Long: `Wait for a valid frame on the connection until timeout.

Without --channel the command waits passively, so press a button on a remote
bound to the transceiver. With --channel it sends READ_STATE to that channel
and waits for the answer.

Malformed bytes are skipped until a complete frame with a valid checksum
arrives.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
	packetTestCmd.Flags().IntVar(&packetTestChannel, "channel", -1, "Send READ_STATE to this channel first")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg.Serial)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("noolite - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)

	if packetTestChannel >= 0 {
		req := readStateRequest(uint8(packetTestChannel))
		frame := mtrf.BuildFrame(req)
		if _, err := conn.Write(frame); err != nil {
			fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
			os.Exit(2)
		}
		fmt.Print(describeSent(req, frame))
	}
	fmt.Printf("Waiting for valid frame...\n\n")

	frameChan := make(chan *mtrf.Response, 1)
	errChan := make(chan error, 1)

	go func() {
		reader := mtrf.NewFrameReader(conn)
		invalid := 0
		for {
			_, resp, err := reader.ReadFrame()
			var frameErr *mtrf.FrameError
			if errors.As(err, &frameErr) {
				invalid++
				continue
			}
			if err != nil {
				errChan <- err
				return
			}
			if invalid > 0 {
				fmt.Printf("(skipped %d malformed frames before sync)\n", invalid)
			}
			resp.Received = time.Now()
			frameChan <- resp
			return
		}
	}()

	select {
	case resp := <-frameChan:
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Print(mtrf.FormatResponse(resp))
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(packetTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", packetTestTimeout)
		os.Exit(1)
	}

	return nil
}

func readStateRequest(channel uint8) *mtrf.Request {
	return &mtrf.Request{
		Mode:    mtrf.ModeTXF,
		Action:  mtrf.ActionSendCommand,
		Channel: channel,
		Command: mtrf.CmdReadState,
	}
}

// describeSent prints a request followed by its raw bytes
func describeSent(req *mtrf.Request, frame []byte) string {
	return fmt.Sprintf("Sent: %s\n      %s\n", mtrf.FormatRequest(req), mtrf.FormatHex(frame))
}
