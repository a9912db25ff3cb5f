package main

import (
	"flag"
	"fmt"

	"github.com/banshee-data/mindflex/internal/config"
)

// cliFlags holds the command line. Only flags the user actually set override
// the config file and environment.
type cliFlags struct {
	fs *flag.FlagSet

	configPath     *string
	port           *string
	listen         *string
	verbose        *bool
	debug          *bool
	threshold      *int
	dbPath         *string
	capturePath    *string
	replayPath     *string
	devMode        *bool
	disableHeadset *bool
	logFile        *string
	version        *bool
}

func newCLIFlags(name string) *cliFlags {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return &cliFlags{
		fs:             fs,
		configPath:     fs.String("config", "", "Path to a .json or .toml config file"),
		port:           fs.String("port", config.DEFAULT_PORT, "Serial port the headset is paired on"),
		listen:         fs.String("listen", config.DEFAULT_LISTEN, "Debug HTTP server listen address"),
		verbose:        fs.Bool("verbose", false, "Deliver every decoded record, including heartbeat frames"),
		debug:          fs.Bool("debug", false, "Log handshakes, dropped frames and every decoded record"),
		threshold:      fs.Int("threshold", config.DEFAULT_THRESHOLD, "Attention value (0-255) that raises a trigger"),
		dbPath:         fs.String("db", "", "SQLite record store path (empty disables the store)"),
		capturePath:    fs.String("capture", "", "Write the raw serial byte stream to a zstd capture file"),
		replayPath:     fs.String("replay", "", "Replay a zstd capture instead of opening the serial port"),
		devMode:        fs.Bool("dev", false, "Generate synthetic frames instead of opening the serial port"),
		disableHeadset: fs.Bool("disable-headset", false, "Run the HTTP server and stores without a headset"),
		logFile:        fs.String("log-file", "", "Also write logs to this size-rotated file"),
		version:        fs.Bool("version", false, "Print version information and exit"),
	}
}

func (f *cliFlags) Parse(args []string) error {
	return f.fs.Parse(args)
}

// Args returns the positional arguments, e.g. the migrate subcommand.
func (f *cliFlags) Args() []string {
	return f.fs.Args()
}

// resolveConfig layers the config file, MINDFLEX_* environment and explicitly
// set flags, in that order.
func (f *cliFlags) resolveConfig() (*config.HeadsetConfig, error) {
	cfg := config.EmptyHeadsetConfig()
	if *f.configPath != "" {
		loaded, err := config.LoadHeadsetConfig(*f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "port":
			cfg.Port = f.port
		case "listen":
			cfg.Listen = f.listen
		case "verbose":
			cfg.Verbose = f.verbose
		case "debug":
			cfg.Debug = f.debug
		case "threshold":
			cfg.Threshold = f.threshold
		case "db":
			cfg.DBPath = f.dbPath
		case "capture":
			cfg.CapturePath = f.capturePath
		case "log-file":
			cfg.LogFile = f.logFile
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

// headsetMode names the byte source selected by the flags.
func (f *cliFlags) headsetMode() (string, error) {
	var modes []string
	if *f.disableHeadset {
		modes = append(modes, "disabled")
	}
	if *f.devMode {
		modes = append(modes, "dev")
	}
	if *f.replayPath != "" {
		modes = append(modes, "replay")
	}
	switch len(modes) {
	case 0:
		return "serial", nil
	case 1:
		return modes[0], nil
	default:
		return "", fmt.Errorf("-disable-headset, -dev and -replay are mutually exclusive, got %v", modes)
	}
}
