package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/itohio/zfishctrl/pkg/config"
	"github.com/itohio/zfishctrl/pkg/zfish"
)

const usage = `Usage: zfishctl [flags] [command]

Commands:
  monitor            print everything the rig reports (default)
  send <cmd>...      send each argument as a command line and print the reply
  run                run one experiment: the configured pattern (zfishctrl)
                     or the configured stimuli schedule (zimon)

Flags:
`

func main() {
	var (
		portFlag    = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0, \"auto\" to scan)")
		configFlag  = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag    = flag.Bool("mock", false, "Use simulated rig instead of serial port")
		baudFlag    = flag.Int("baud", 0, "Baud rate override")
		probeFlag   = flag.Bool("probe", false, "Check that a rig answers on the port and exit")
		portsFlag   = flag.Bool("ports", false, "List serial ports and exit")
		averageFlag = flag.Int("average", 1, "Average temperature over this many reports")
		traceFlag   = flag.Int("trace", 20, "Temperature points printed after a run (0 = none)")
	)
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *portsFlag {
		listPorts()
		return
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *baudFlag > 0 {
		cfg.Serial.BaudRate = *baudFlag
	}

	if !*mockFlag && strings.EqualFold(cfg.Serial.Port, "auto") {
		port, err := zfish.AutoDetect(cfg.Serial.BaudRate)
		if err != nil {
			log.Fatalf("Failed to find rig: %v", err)
		}
		fmt.Printf("Found rig on %s\n", port)
		cfg.Serial.Port = port
	}

	if *probeFlag {
		ok, err := zfish.Probe(cfg.Serial.Port, cfg.Serial.BaudRate, 3)
		if err != nil {
			log.Fatalf("Probe failed: %v", err)
		}
		if !ok {
			fmt.Printf("No rig answered on %s\n", cfg.Serial.Port)
			os.Exit(1)
		}
		fmt.Printf("Rig answered on %s\n", cfg.Serial.Port)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dev := openDevice(cfg, *mockFlag)
	defer dev.Close()

	waitReady(ctx, dev, 3*time.Second)

	cmd, args := "monitor", []string(nil)
	if flag.NArg() > 0 {
		cmd, args = flag.Arg(0), flag.Args()[1:]
	}

	switch cmd {
	case "monitor":
		err = monitor(ctx, dev, *averageFlag)
	case "send":
		err = send(ctx, dev, args)
	case "run":
		err = runExperiment(ctx, dev, cfg, *averageFlag, *traceFlag)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func listPorts() {
	ports, err := zfish.Ports()
	if err != nil {
		log.Fatalf("Failed to list serial ports: %v", err)
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return
	}
	for _, p := range ports {
		fmt.Printf("%-20s %s\n", p.Name, p.Description)
	}
}

func openDevice(cfg *config.Config, mock bool) zfish.Device {
	var dev zfish.Device
	if mock {
		dev = zfish.NewMock(cfg)
	} else {
		dev = zfish.New(cfg.Serial.Port, cfg.Serial.BaudRate, 500)
	}

	if err := dev.Connect(); err != nil {
		if mock {
			log.Fatalf("Failed to connect to simulated rig: %v", err)
		}
		log.Fatalf("Failed to connect to %s: %v", cfg.Serial.Port, err)
	}

	if mock {
		fmt.Printf("Connected to simulated rig (%s)\n", cfg.Protocol.Variant)
	} else {
		fmt.Printf("Connected to serial port: %s\n", cfg.Serial.Port)
	}
	return dev
}

// waitReady consumes events until the startup banner. Opening the port
// resets most boards, so commands sent before it are lost.
func waitReady(ctx context.Context, dev zfish.Device, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			log.Printf("No startup banner within %v, continuing", timeout)
			return
		case ev, ok := <-dev.Events():
			if !ok {
				return
			}
			printEvent(ev)
			if ev.Kind == zfish.EventReady {
				return
			}
		}
	}
}

func printEvent(ev zfish.Event) {
	fmt.Printf("%s %s\n", ev.Timestamp.Format("15:04:05.000"), ev.Line)
}
