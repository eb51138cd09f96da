package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/PixPMusic/midiwire/internal/bridge"
	"github.com/PixPMusic/midiwire/internal/config"
	"github.com/PixPMusic/midiwire/internal/midi"
	"github.com/PixPMusic/midiwire/internal/monitor"
	"github.com/PixPMusic/midiwire/internal/port"
)

var log = logrus.New()

func main() {
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (default from config)")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}
	if *logLevel != "" {
		setLogLevel(*logLevel)
	}

	var err error
	switch args[0] {
	case "ports":
		err = runPorts(args[1:])
	case "monitor":
		err = runMonitor(args[1:], *logLevel == "")
	case "forward":
		err = runForward(args[1:], *logLevel == "")
	case "send":
		err = runSend(args[1:], *logLevel == "")
	case "kinds":
		runKinds()
	case "help", "-h", "--help":
		usage()
	default:
		log.Errorf("unknown command: %s", args[0])
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Println("midiwire - MIDI 1.0 byte stream tool")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  midiwire [-log-level LEVEL] <command> [options]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  ports     list MIDI driver ports and serial devices")
	fmt.Println("  monitor   show messages arriving on an endpoint")
	fmt.Println("  forward   forward messages along the configured routes")
	fmt.Println("  send      send messages to an endpoint")
	fmt.Println("  kinds     list message kinds and their data byte count")
	fmt.Println("")
	fmt.Println("Examples:")
	fmt.Println("  midiwire monitor -endpoint 'USB MIDI Interface'")
	fmt.Println("  midiwire forward -config ./routes.json")
	fmt.Println("  midiwire send -endpoint synth -channel 9 NoteOn 36 127 NoteOff 36 0")
}

func setLogLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.Warnf("invalid log level %q, using info", level)
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
}

// loadConfig reads path, or the default config location when path is empty
func loadConfig(path string, applyLevel bool) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg, err = config.Load()
	} else {
		cfg, err = config.LoadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if applyLevel {
		setLogLevel(cfg.LogLevel)
	}
	return cfg, nil
}

// resolveEndpoint finds name in cfg. Unknown names are taken as driver port
// names, used as input when input is true and as output otherwise.
func resolveEndpoint(cfg *config.Config, name string, input bool) config.EndpointConfig {
	if e := cfg.FindEndpoint(name); e != nil {
		return *e
	}
	e := config.EndpointConfig{ID: name, Name: name, Type: port.TypeDriver}
	if input {
		e.InPort = name
	} else {
		e.OutPort = name
	}
	return e
}

func runPorts(args []string) error {
	fs := flag.NewFlagSet("ports", flag.ExitOnError)
	_ = fs.Parse(args)

	m := port.NewManager(log)
	defer m.Close()

	fmt.Println("MIDI inputs:")
	for _, name := range m.ListInPorts() {
		fmt.Printf("  %s\n", name)
	}
	fmt.Println("MIDI outputs:")
	for _, name := range m.ListOutPorts() {
		fmt.Printf("  %s\n", name)
	}
	fmt.Println("Serial devices:")
	serials, err := m.ListSerialPorts()
	if err != nil {
		log.WithError(err).Warn("serial enumeration failed")
	}
	for _, name := range serials {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

func runMonitor(args []string, levelFromConfig bool) error {
	fs := flag.NewFlagSet("monitor", flag.ExitOnError)
	endpoint := fs.String("endpoint", "", "endpoint name from config, or a MIDI input port name")
	configPath := fs.String("config", "", "config file (default: user config directory)")
	history := fs.Int("history", monitor.DefaultHistory, "number of messages kept on screen")
	interval := fs.Duration("interval", monitor.DefaultInterval, "receive poll interval")
	_ = fs.Parse(args)

	if *endpoint == "" {
		return fmt.Errorf("monitor: -endpoint is required")
	}
	cfg, err := loadConfig(*configPath, levelFromConfig)
	if err != nil {
		return err
	}
	ec := resolveEndpoint(cfg, *endpoint, true)

	m := port.NewManager(log)
	defer m.Close()
	p, err := port.Open(m, ec.PortOptions())
	if err != nil {
		return err
	}
	defer p.Close()

	opts := append(ec.ReceiverOptions(), midi.WithLogger(log.WithField("endpoint", ec.Name)))
	model := monitor.NewModel(ec.Name, midi.NewReceiver(p, opts...))
	model.History = *history
	model.Interval = *interval

	// logs would tear the screen
	log.SetOutput(io.Discard)
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

func runForward(args []string, levelFromConfig bool) error {
	fs := flag.NewFlagSet("forward", flag.ExitOnError)
	configPath := fs.String("config", "", "config file (default: user config directory)")
	idle := fs.Duration("idle", time.Millisecond, "sleep between polls when no message arrived")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath, levelFromConfig)
	if err != nil {
		return err
	}
	if len(cfg.Routes) == 0 {
		return fmt.Errorf("forward: no routes configured")
	}

	m := port.NewManager(log)
	defer m.Close()

	b, err := bridge.FromConfig(cfg, bridge.ManagerOpener(m), log)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("routes", len(cfg.Routes)).Info("forwarding")
	err = b.Run(ctx, *idle)
	log.WithFields(logrus.Fields{
		"forwarded": b.Forwarded(),
		"errors":    b.ErrorCounts(),
	}).Info("stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runSend(args []string, levelFromConfig bool) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	endpoint := fs.String("endpoint", "", "endpoint name from config, or a MIDI output port name")
	configPath := fs.String("config", "", "config file (default: user config directory)")
	channel := fs.Int("channel", -1, "channel 0-15 for every channel message")
	_ = fs.Parse(args)

	if *endpoint == "" {
		return fmt.Errorf("send: -endpoint is required")
	}
	msgs, err := parseMessages(fs.Args())
	if err != nil {
		return err
	}

	var opts []midi.SendOption
	if *channel >= 0 {
		if *channel > 15 {
			return fmt.Errorf("send: channel %d out of range 0-15", *channel)
		}
		opts = append(opts, midi.WithChannel(uint8(*channel)))
	}

	cfg, err := loadConfig(*configPath, levelFromConfig)
	if err != nil {
		return err
	}
	ec := resolveEndpoint(cfg, *endpoint, false)

	m := port.NewManager(log)
	defer m.Close()
	p, err := port.Open(m, ec.PortOptions())
	if err != nil {
		return err
	}
	defer p.Close()

	if err := midi.NewSender(p).SendAll(msgs, opts...); err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}
	for _, msg := range msgs {
		log.WithField("endpoint", ec.Name).Debug(msg.String())
	}
	return nil
}

// parseMessages reads a sequence of "KIND [DATA0 [DATA1]]" groups. Each kind
// takes as many data values as it has data bytes.
func parseMessages(args []string) ([]midi.Message, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no message given")
	}

	var msgs []midi.Message
	for len(args) > 0 {
		kind, err := midi.ParseKind(args[0])
		if err != nil {
			return nil, err
		}
		args = args[1:]

		n := kind.Arity()
		if len(args) < n {
			return nil, fmt.Errorf("%s needs %d data values", kind, n)
		}
		msg := midi.Message{Kind: kind}
		data := []*uint8{&msg.Data0, &msg.Data1}
		for i := 0; i < n; i++ {
			v, err := strconv.ParseUint(args[i], 0, 8)
			if err != nil {
				return nil, fmt.Errorf("%s data value %q: %w", kind, args[i], err)
			}
			*data[i] = uint8(v)
		}
		args = args[n:]
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func runKinds() {
	for _, k := range midi.Kinds() {
		fmt.Printf("  0x%02X  %-20s %d\n", byte(k), k, k.Arity())
	}
}
