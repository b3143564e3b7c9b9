package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cybre/birthday-visualizer/internal/config"
)

type runtimeOptions struct {
	configPath  string
	preset      string
	seed        int64
	bulbAddr    string
	wsAddr      string
	deviceIndex int
	sampleRate  float64
	frameSize   int
	channels    int
	latency     time.Duration
	visualize   bool
	debug       bool
}

func newRootCommand() *cobra.Command {
	var opts runtimeOptions

	root := &cobra.Command{
		Use:   "visualizer",
		Short: "Audio reactive birthday party visuals",
		Long: `Turns music into a birthday scene: balloons bob with the bass, hearts pulse,
fireworks and confetti go off on the beat.

Frames are streamed to browser renderers over WebSocket, drawn in the terminal with
--visualize, and mirrored on a Yeelight bulb with --bulb.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config file, reloaded on change")
	flags.StringVar(&opts.preset, "preset", "", "preset to apply on top of the config ("+presetList()+")")
	flags.Int64Var(&opts.seed, "seed", 0, "seed for the effect dice (0 = random)")
	flags.StringVar(&opts.bulbAddr, "bulb", "", `yeelight bulb address (ip[:port]) or "auto" to use the first one discovered`)
	flags.StringVar(&opts.wsAddr, "ws", ":8420", "address to stream frames to renderers on (empty disables)")
	flags.BoolVar(&opts.visualize, "visualize", false, "render realtime terminal visualization (logs go to stderr)")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")

	var latencyMs int
	run := &cobra.Command{
		Use:   "run",
		Short: "React to live audio input",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.latency = time.Duration(latencyMs) * time.Millisecond
			return runLive(cmd.Context(), opts)
		},
	}
	run.Flags().IntVar(&opts.deviceIndex, "device", -1, "audio input device index (leave blank to choose interactively)")
	run.Flags().Float64Var(&opts.sampleRate, "sample-rate", 0, "capture sample rate (0 = device default)")
	run.Flags().IntVar(&opts.frameSize, "frame-size", 1024, "capture buffer size in samples")
	run.Flags().IntVar(&opts.channels, "channels", 2, "number of input channels to capture (<= device max)")
	run.Flags().IntVar(&latencyMs, "latency-ms", 0, "override input latency in milliseconds (0 = device default)")

	play := &cobra.Command{
		Use:   "play FILE...",
		Short: "React to a playlist of WAV or MP3 files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlaylist(cmd.Context(), opts, args)
		},
	}

	devices := &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listDevices(cmd.OutOrStdout())
		},
	}

	bulbs := &cobra.Command{
		Use:   "bulbs",
		Short: "Discover Yeelight bulbs on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listBulbs(cmd.Context(), cmd.OutOrStdout())
		},
	}

	root.AddCommand(run, play, devices, bulbs)
	return root
}

func presetList() string {
	return strings.Join(config.PresetNames(), ", ")
}
