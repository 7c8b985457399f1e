// Command relay-lights drives relay-switched lights from wall buttons and
// accepts JSON line commands over a serial port and MQTT.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/relay-lights/internal/clock"
	"github.com/sweeney/relay-lights/internal/config"
	"github.com/sweeney/relay-lights/internal/controller"
	"github.com/sweeney/relay-lights/internal/device"
	"github.com/sweeney/relay-lights/internal/gpio"
	"github.com/sweeney/relay-lights/internal/light"
	"github.com/sweeney/relay-lights/internal/logging"
	"github.com/sweeney/relay-lights/internal/mqtt"
	"github.com/sweeney/relay-lights/internal/serial"
	"github.com/sweeney/relay-lights/internal/status"
	"github.com/sweeney/relay-lights/internal/storage"
	"github.com/sweeney/relay-lights/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (empty for defaults)")
	printState := flag.Bool("print-state", false, "Print persisted configuration and devices and exit")

	flag.Parse()

	if err := run(*configPath, *printState); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

// store is a byte store that may hold a file open.
type store interface {
	storage.Store
	io.Closer
}

type memStore struct{ *storage.MemStore }

func (memStore) Close() error { return nil }

func openStore(cfg *config.Config) (store, error) {
	if cfg.Storage.Path == "" {
		log.Warn().Msg("no storage path configured, state will not survive a restart")
		return memStore{storage.NewMemStore(cfg.Storage.Size)}, nil
	}
	s, err := storage.OpenBolt(cfg.Storage.Path, cfg.Storage.Size)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return s, nil
}

func run(configPath string, printState bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := logging.Setup(cfg.Logging); err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	codec, err := storage.NewCodec(st, storage.NewLayout(device.MaxButtons, device.MaxRelays))
	if err != nil {
		return fmt.Errorf("init codec: %w", err)
	}

	clk := clock.NewReal()
	opts := controller.Options{
		Clock:            clk,
		Codec:            codec,
		Light:            cfg.LightSettings(),
		SampleWindow:     cfg.SampleWindow(),
		ClassifyWindow:   cfg.ClassifyWindow(),
		FirstEdgeTimeout: cfg.FirstEdgeTimeout(),
	}

	// Print state mode
	if printState {
		ctrl := controller.New(opts)
		if err := ctrl.Load(); err != nil {
			return fmt.Errorf("load state: %w", err)
		}
		fmt.Println(ctrl.StatusText())
		return nil
	}

	// Initialize GPIO
	table, err := cfg.PinTable()
	if err != nil {
		return err
	}
	pins, err := gpio.NewChip(cfg.GPIO.Chip, table)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer pins.Close()
	opts.Pins = pins

	// Initialize command sources and the event publisher
	var sources []transport.Source
	if cfg.Serial.Port != "" {
		port, err := serial.Open(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			return err
		}
		defer port.Close()
		sources = append(sources, port)
	}

	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topics:   mqtt.NewTopics(cfg.MQTT.TopicPrefix),
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, mqttStatus = p, p
		sources = append(sources, p)
	}
	opts.Sources = transport.NewMulti(sources...)

	ctrl := controller.New(opts)
	if err := ctrl.Boot(); err != nil {
		return fmt.Errorf("boot: %w", err)
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		CycleMs:     cfg.CycleInterval().Milliseconds(),
		SampleMs:    cfg.SampleWindow().Milliseconds(),
		HeartbeatMs: cfg.HeartbeatInterval().Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		SerialPort:  cfg.Serial.Port,
		StorePath:   cfg.Storage.Path,
	})
	nb, nr := ctrl.Counts()
	tracker.Update(ctrl.LightState(), nb, nr)

	// Publish startup event with full status snapshot
	if publisher != nil {
		snap := tracker.Snapshot()
		startup := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startup); err != nil {
			log.Error().Err(err).Msg("failed to publish startup event")
		} else {
			log.Info().Msg("published startup event")
		}
	}

	log.Info().
		Dur("cycle", cfg.CycleInterval()).
		Int("sources", opts.Sources.Len()).
		Str("broker", cfg.MQTT.Broker).
		Dur("heartbeat", cfg.HeartbeatInterval()).
		Msg("started")

	ticker := time.NewTicker(cfg.CycleInterval())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctrl, publisher, mqttStatus, tracker, cfg.HeartbeatInterval(), time.Now, ticker.C, sigCh)
}

// cycler is the part of the controller the main loop drives.
type cycler interface {
	Step() []light.Event
	LightState() light.State
	Counts() (buttons, relays int)
}

func runLoop(ctrl cycler, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	lastHeartbeat := now()

	refresh := func() {
		if tracker == nil {
			return
		}
		nb, nr := ctrl.Counts()
		tracker.Update(ctrl.LightState(), nb, nr)
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}

	for {
		select {
		case s := <-sig:
			log.Info().Str("signal", s.String()).Msg("shutting down")
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			if publisher == nil {
				return nil
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				refresh()
				event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Error().Err(err).Msg("failed to publish shutdown event")
			} else {
				log.Info().Msg("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			events := ctrl.Step()

			for _, event := range events {
				log.Info().
					Str("event", string(event.Type)).
					Bool("on", event.On).
					Uint8("mode", event.Mode).
					Msg("light event")
				if publisher != nil {
					if err := publisher.Publish(event); err != nil {
						// Don't crash on publish failure
						log.Error().Err(err).Str("event", string(event.Type)).Msg("publish error")
					}
				}
			}

			refresh()
			if tracker != nil {
				tracker.Observe(events)
			}

			// Check for heartbeat
			if heartbeat > 0 && t.Sub(lastHeartbeat) >= heartbeat {
				lastHeartbeat = t
				st := ctrl.LightState()
				log.Info().
					Bool("on", st.On).
					Uint8("mode", st.Mode).
					Int("timeout_minutes", st.TimeoutMinutes).
					Int("timeouts", st.Counts.Timeouts).
					Msg("heartbeat")

				if publisher != nil {
					hb := mqtt.SystemEvent{Timestamp: t, Event: "HEARTBEAT"}
					if tracker != nil {
						hb.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", "")
					}
					if err := publisher.PublishSystem(hb); err != nil {
						log.Error().Err(err).Msg("heartbeat publish error")
					}
				}
			}
		}
	}
}
