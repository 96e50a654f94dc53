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
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openiio/iiod/config"
	"github.com/openiio/iiod/internal/device"
	"github.com/openiio/iiod/internal/device/mock"
	"github.com/openiio/iiod/internal/device/sysfs"
	"github.com/openiio/iiod/internal/dispatcher"
	"github.com/openiio/iiod/internal/netserver"
	"github.com/openiio/iiod/internal/registry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the iiod daemon",
	Long: `Start the iiod daemon, multiplexing reads across subscribers on
each configured device and serving attribute read/write.

Example:
  iiod serve                              # Start with default settings
  iiod serve --address 0.0.0.0:30432      # Custom address`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("address", "a", "", "TCP listen address (default: 0.0.0.0:30431)")

	if err := viper.BindPFlag("server.listen_address", serveCmd.Flags().Lookup("address")); err != nil {
		log.Warn("failed to bind address flag", "error", err)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := initLogger(cfg)

	if addr, _ := cmd.Flags().GetString("address"); addr != "" {
		cfg.Server.ListenAddress = addr
	}

	logger.Info("starting iiod",
		"version", Version,
		"address", cfg.Server.ListenAddress,
		"backend", cfg.Device.Backend)

	ctx, err := buildDeviceContext(cfg)
	if err != nil {
		return fmt.Errorf("failed to build device context: %w", err)
	}

	reg := registry.New(logger, cfg.Stream.IterationByteCap)
	disp := dispatcher.New(reg, logger)
	srv := netserver.New(cfg.Server.ListenAddress, disp, ctx, cfg.Server.MaxConnections, logger)

	listener, err := net.Listen("tcp", cfg.Server.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.ListenAddress, err)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("iiod listening", "address", cfg.Server.ListenAddress)
		if err := srv.Serve(listener); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigCtx.Done():
		logger.Info("shutting down")
		listener.Close()
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

// buildDeviceContext builds the device.Context the registry and
// dispatcher resolve against, per cfg.Device.Backend. There is no
// device discovery here: every exposed device is named explicitly in
// cfg.Device.Devices.
func buildDeviceContext(cfg *config.Config) (device.Context, error) {
	switch cfg.Device.Backend {
	case "mock":
		devices := make([]*mock.Device, 0, len(cfg.Device.Devices))
		for _, spec := range cfg.Device.Devices {
			devices = append(devices, mock.New(spec.ID, spec.Name, nil))
		}
		return mock.NewContext(devices...), nil

	case "sysfs":
		specs := make([]sysfs.Spec, 0, len(cfg.Device.Devices))
		for _, spec := range cfg.Device.Devices {
			specs = append(specs, sysfs.Spec{
				ID:       spec.ID,
				Name:     spec.Name,
				Chardev:  spec.Chardev,
				SysfsDir: spec.SysfsDir,
			})
		}
		return sysfs.NewContext(specs...), nil

	default:
		return nil, fmt.Errorf("unknown device backend %q", cfg.Device.Backend)
	}
}

// initLogger creates and configures a charmbracelet logger based on config
func initLogger(cfg *config.Config) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		ReportCaller:    true,
	})

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "info":
		logger.SetLevel(log.InfoLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	return logger
}
