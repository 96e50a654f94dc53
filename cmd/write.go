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
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var attrWriteCmd = &cobra.Command{
	Use:   "attr-write DEVICE ATTR VALUE",
	Short: "Write a device attribute",
	Long: `Write VALUE to DEVICE's ATTR attribute file.

Example:
  iiod attr-write dev0 sampling_freq "1000"
  iiod attr-write dev0 calibration --hex "0102030f"`,
	Args: cobra.ExactArgs(3),
	RunE: runAttrWrite,
}

func init() {
	rootCmd.AddCommand(attrWriteCmd)

	attrWriteCmd.Flags().Uint32("timeout", 5000, "timeout in milliseconds")
	attrWriteCmd.Flags().Bool("hex", false, "interpret VALUE as a hex string")
}

func runAttrWrite(cmd *cobra.Command, args []string) error {
	deviceID, attr, value := args[0], args[1], args[2]

	hexMode, _ := cmd.Flags().GetBool("hex")
	timeoutMs, _ := cmd.Flags().GetUint32("timeout")

	payload := []byte(value)
	if hexMode {
		decoded, err := hex.DecodeString(value)
		if err != nil {
			return fmt.Errorf("failed to parse hex value: %w", err)
		}
		payload = decoded
	}

	addr := GetAddress()
	conn, err := net.DialTimeout("tcp", addr, time.Duration(timeoutMs)*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to connect to daemon at %s: %w", addr, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(time.Duration(timeoutMs) * time.Millisecond))

	fmt.Fprintf(conn, "WRITEATTR %s %s %s\n", deviceID, attr, hex.EncodeToString(payload))

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
		return fmt.Errorf("write_dev_attr failed: status %d", n)
	}

	if IsVerbose() {
		fmt.Printf("wrote %d bytes to %s/%s\n", n, deviceID, attr)
	} else {
		fmt.Printf("wrote %d bytes\n", n)
	}

	return nil
}
