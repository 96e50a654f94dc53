/*
Copyright 2024 SerialLink Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read DEVICE NB SAMPLE_SIZE",
	Short: "Read samples from a device",
	Long: `Read NB samples of SAMPLE_SIZE bytes each from DEVICE, joining
(or starting) its reader task on the daemon.

Example:
  iiod read dev0 8 4                      # Read 8 samples of 4 bytes
  iiod read dev0 8 4 --format hex         # Print the payload as hex`,
	Args: cobra.ExactArgs(3),
	RunE: runRead,
}

func init() {
	rootCmd.AddCommand(readCmd)

	readCmd.Flags().Uint32("timeout", 5000, "timeout in milliseconds")
	readCmd.Flags().String("format", "text", "output format (text, hex)")
}

func runRead(cmd *cobra.Command, args []string) error {
	deviceID := args[0]
	nb, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid NB %q: %w", args[1], err)
	}
	sampleSize, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid SAMPLE_SIZE %q: %w", args[2], err)
	}

	timeoutMs, _ := cmd.Flags().GetUint32("timeout")
	format, _ := cmd.Flags().GetString("format")

	addr := GetAddress()
	conn, err := net.DialTimeout("tcp", addr, time.Duration(timeoutMs)*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to connect to daemon at %s: %w", addr, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(time.Duration(timeoutMs) * time.Millisecond))

	fmt.Fprintf(conn, "READ %s %d %d\n", deviceID, nb, sampleSize)

	want := nb * sampleSize
	got := 0
	var payload []byte
	reader := bufio.NewReader(conn)

	for got < want {
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("connection closed before %d bytes were read (got %d): %w", want, got, err)
		}
		n, err := strconv.Atoi(trimNewline(line))
		if err != nil {
			return fmt.Errorf("unexpected response line %q", line)
		}
		if n < 0 {
			return fmt.Errorf("read_dev failed: status %d", n)
		}
		if n == 0 {
			break
		}

		chunk := make([]byte, n)
		if _, err := io.ReadFull(reader, chunk); err != nil {
			return fmt.Errorf("failed to read payload: %w", err)
		}
		payload = append(payload, chunk...)
		got += n
	}

	// The final status line, written after read_dev returns. A
	// mid-stream failure never gets here: the loop above already
	// returned on its in-stream negative status line, so the second
	// line of that double report is left unread.
	if line, err := reader.ReadString('\n'); err == nil {
		if IsVerbose() {
			fmt.Printf("final status: %s", line)
		}
	}

	switch format {
	case "hex":
		for i, b := range payload {
			if i > 0 && i%16 == 0 {
				fmt.Println()
			}
			fmt.Printf("%02x ", b)
		}
		fmt.Println()
	default:
		fmt.Print(string(payload))
	}

	if IsVerbose() {
		fmt.Printf("\nread %d bytes\n", len(payload))
	}

	return nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

