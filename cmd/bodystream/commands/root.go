package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "bodystream",
		Short: "BodyStreamer - stream depth-camera body tracking over UDP",
		Long: `BodyStreamer captures depth frames from an Azure Kinect, runs body tracking
on them and sends every joint of every tracked body, in world coordinates, as
its own UDP datagram.

Features:
  • Azure Kinect capture and body tracking (build with -tags=k4a)
  • Simulated sensor for development without hardware
  • World-space transform from a static or serial-beacon device offset
  • One text datagram per joint: frame,body,joint,x,y,z
  • Optional monitor with status API, websocket feed and skeleton preview`,
		Example: `  # Stream to the default destination (127.0.0.1:9000)
  bodystream

  # Stream simulated bodies to another host with debug logging
  bodystream --simulate --host 192.168.1.20 --port 9100 --log-level debug

  # Enable the monitor on :8080
  bodystream --monitor`,
		SilenceUsage: true,
		RunE:         runStream,
	}
)

// flag name -> configuration key
var flagKeys = map[string]string{
	"log-level":        "log_level",
	"log-pretty":       "log_pretty",
	"simulate":         "simulate",
	"device-index":     "device.index",
	"processing-mode":  "tracker.processing_mode",
	"position-source":  "position.source",
	"position-refresh": "position.refresh",
	"serial-port":      "position.serial.port",
	"host":             "transmit.host",
	"port":             "transmit.port",
	"buffer-size":      "transmit.buffer_size",
	"precision":        "transmit.precision",
	"fault-policy":     "transmit.fault_policy",
	"monitor":          "monitor.enabled",
	"monitor-port":     "monitor.port",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/bodystream/config.yaml)")

	flags := rootCmd.Flags()
	flags.String("log-level", "", "log level (trace, debug, info, warn, error)")
	flags.Bool("log-pretty", false, "human-readable console logs instead of JSON")
	flags.Bool("simulate", false, "use the simulated sensor instead of an Azure Kinect")
	flags.Int("device-index", 0, "index of the device to open")
	flags.String("processing-mode", "", "tracker processing mode (gpu, cpu, cuda, tensorrt, directml)")
	flags.String("position-source", "", "device offset source (none, static, serial)")
	flags.String("position-refresh", "", "when to re-read the device offset (session, iteration)")
	flags.String("serial-port", "", "serial port of the position beacon")
	flags.String("host", "", "destination host (default is 127.0.0.1)")
	flags.Int("port", 0, "destination UDP port (default is 9000)")
	flags.Int("buffer-size", 0, "maximum datagram size in bytes (default is 256)")
	flags.Int("precision", 0, "digits after the decimal point in coordinates (default is 6)")
	flags.String("fault-policy", "", "on send failure: skip_joint or abort_body")
	flags.Bool("monitor", false, "serve the monitor API and preview")
	flags.Int("monitor-port", 0, "monitor HTTP port (default is 8080)")
	flags.Bool("save-config", false, "write the effective configuration to the config file and exit")

	for flag, key := range flagKeys {
		viper.BindPFlag(key, flags.Lookup(flag))
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}
