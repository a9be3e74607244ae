// Command weatherlinkd opens the USB dongle, configures its radio, runs the
// protocol engine, and prints labeled current-weather snapshots on a timer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"weatherlink-go/bus"
	"weatherlink-go/engine"
	"weatherlink-go/radio"
	"weatherlink-go/sensormap"
	"weatherlink-go/types"
	"weatherlink-go/usbtransport"
)

// shutdownJoinWindow bounds how long main waits for the RF thread to notice
// cancellation before giving up on a clean join.
const shutdownJoinWindow = 60 * time.Second

func main() {
	region := flag.String("region", "us", "radio base frequency: us or eu")
	snapshotEvery := flag.Duration("snapshot-every", 10*time.Second, "how often to print a current-reading snapshot")
	commInterval := flag.Int("comm-interval", 3, "communication-mode interval sent in every ack")
	flag.Parse()

	baseFreq, err := baseFreqFor(*region)
	if err != nil {
		fmt.Fprintln(os.Stderr, "weatherlinkd:", err)
		os.Exit(1)
	}

	t, err := usbtransport.Open()
	if err != nil {
		fmt.Fprintln(os.Stderr, "weatherlinkd: open dongle:", err)
		os.Exit(1)
	}
	defer t.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ident, err := radio.Configure(ctx, t, baseFreq)
	if err != nil {
		fmt.Fprintln(os.Stderr, "weatherlinkd: configure radio:", err)
		os.Exit(1)
	}
	fmt.Printf("weatherlinkd: dongle %04x (serial %s) configured on %s\n", ident.ID, ident.Serial, *region)

	sm, err := defaultSensorMap()
	if err != nil {
		fmt.Fprintln(os.Stderr, "weatherlinkd: sensor map:", err)
		os.Exit(1)
	}

	b := bus.NewBus(8)
	engineConn := b.NewConnection("engine")
	uiConn := b.NewConnection("ui")

	opts := engine.DefaultOptions()
	opts.CommInterval = byte(*commInterval)
	eng := engine.New(t, ident, opts, engineConn)

	done := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go printSnapshots(uiConn, sm, *snapshotEvery, ctx.Done())

	<-sigCh
	fmt.Println("weatherlinkd: shutting down")
	cancel()

	select {
	case <-done:
	case <-time.After(shutdownJoinWindow):
		fmt.Fprintln(os.Stderr, "weatherlinkd: RF thread did not stop within the shutdown window")
	}
}

func baseFreqFor(region string) (int64, error) {
	switch region {
	case "us":
		return radio.BaseFreqUS, nil
	case "eu":
		return radio.BaseFreqEU, nil
	default:
		return 0, fmt.Errorf("unknown region %q (want us or eu)", region)
	}
}

// defaultSensorMap binds the nine temperature and humidity channels to the
// console's stock labels; an operator wiring a real install overrides this
// with their own bindings built through sensormap.New.
func defaultSensorMap() (*sensormap.Map, error) {
	bindings := make([]sensormap.Binding, 0, types.NumChannels*2)
	for ch := 0; ch < types.NumChannels; ch++ {
		bindings = append(bindings,
			sensormap.Binding{Channel: ch, Kind: sensormap.KindTemperature, Label: fmt.Sprintf("temp%d", ch)},
			sensormap.Binding{Channel: ch, Kind: sensormap.KindHumidity, Label: fmt.Sprintf("humidity%d", ch)},
		)
	}
	return sensormap.New(bindings)
}

// printSnapshots subscribes to the engine's retained current-weather topic
// and prints a projected, labeled snapshot at a fixed cadence.
func printSnapshots(conn *bus.Connection, sm *sensormap.Map, every time.Duration, stop <-chan struct{}) {
	sub := conn.Subscribe(bus.T("engine", "current"))
	defer conn.Unsubscribe(sub)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	var latest types.CurrentReading
	haveReading := false

	for {
		select {
		case <-stop:
			return
		case m := <-sub.Channel():
			if r, ok := m.Payload.(types.CurrentReading); ok {
				latest = r
				haveReading = true
			}
		case <-ticker.C:
			if !haveReading {
				fmt.Println("weatherlinkd: no current-weather snapshot yet")
				continue
			}
			for _, obs := range sm.Project(latest) {
				fmt.Printf("  %s = %.1f\n", obs.Label, obs.Value)
			}
		}
	}
}
