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

var attrReadCmd = &cobra.Command{
	Use:   "attr-read DEVICE ATTR",
	Short: "Read a device attribute",
	Long: `Read DEVICE's ATTR attribute file and print its contents.

Example:
  iiod attr-read dev0 sampling_freq`,
	Args: cobra.ExactArgs(2),
	RunE: runAttrRead,
}

func init() {
	rootCmd.AddCommand(attrReadCmd)

	attrReadCmd.Flags().Uint32("timeout", 5000, "timeout in milliseconds")
}

func runAttrRead(cmd *cobra.Command, args []string) error {
	deviceID, attr := args[0], args[1]
	timeoutMs, _ := cmd.Flags().GetUint32("timeout")

	addr := GetAddress()
	conn, err := net.DialTimeout("tcp", addr, time.Duration(timeoutMs)*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to connect to daemon at %s: %w", addr, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(time.Duration(timeoutMs) * time.Millisecond))

	fmt.Fprintf(conn, "READATTR %s %s\n", deviceID, attr)

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	n, err := strconv.Atoi(trimNewline(line))
	if err != nil {
		return fmt.Errorf("unexpected response line %q", line)
	}
	if n < 0 {
		return fmt.Errorf("read_dev_attr failed: status %d", n)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(reader, payload); err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}
	// Trailing newline the daemon appends after the raw payload.
	reader.ReadByte()

	fmt.Print(string(payload))
	if IsVerbose() {
		fmt.Printf("\nread %d bytes\n", n)
	}

	return nil
}
