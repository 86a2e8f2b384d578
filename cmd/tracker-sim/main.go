package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

type telemetryPayload struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Suhu       float64 `json:"suhu"`
	Kelembaban float64 `json:"kelembaban"`
	StatusSOS  int     `json:"status_sos"`
}

type hikerState struct {
	id        string
	latitude  float64
	longitude float64
}

func main() {
	brokerAddr := flag.String("broker", "tcp://localhost:1883", "MQTT broker address, e.g. tcp://localhost:1883")
	hikers := flag.String("hikers", "pendaki_01,pendaki_02", "Comma-separated hiker identifiers")
	baseLat := flag.Float64("base-lat", -6.2146, "Starting latitude for the first hiker")
	baseLong := flag.Float64("base-long", 106.8451, "Starting longitude for the first hiker")
	interval := flag.Duration("interval", 5*time.Second, "Interval between published readings")
	sosProbability := flag.Float64("sos-probability", 0.1, "Probability per message that the SOS flag is set")

	flag.Parse()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var states []*hikerState
	for i, id := range strings.Split(*hikers, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		states = append(states, &hikerState{
			id:        id,
			latitude:  *baseLat + float64(i)*0.02,
			longitude: *baseLong + float64(i)*0.02,
		})
	}
	if len(states) == 0 {
		log.Fatal("no hiker identifiers provided")
	}

	clientID := fmt.Sprintf("tracker-sim-%s", uuid.NewString())
	opts := mqtt.NewClientOptions().AddBroker(*brokerAddr).SetClientID(clientID)
	opts = opts.SetOrderMatters(false)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("failed to connect to broker: %v", token.Error())
	}
	log.Printf("connected to MQTT broker %s as %s", *brokerAddr, clientID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	publish := func() {
		for _, h := range states {
			// Random walk around the hiker's current position.
			h.latitude += rng.Float64()*0.001 - 0.0005
			h.longitude += rng.Float64()*0.001 - 0.0005

			sos := 0
			if rng.Float64() < *sosProbability {
				sos = 1
			}

			payload := telemetryPayload{
				Latitude:   roundTo(h.latitude, 8),
				Longitude:  roundTo(h.longitude, 8),
				Suhu:       roundTo(20.0+rng.Float64()*10.0, 2),
				Kelembaban: roundTo(60.0+rng.Float64()*20.0, 2),
				StatusSOS:  sos,
			}

			data, err := json.Marshal(payload)
			if err != nil {
				log.Printf("failed to encode payload: %v", err)
				continue
			}

			topic := fmt.Sprintf("tracking/%s/data", h.id)
			token := client.Publish(topic, 0, false, data)
			token.Wait()
			if err := token.Error(); err != nil {
				log.Printf("publish error: %v", err)
				continue
			}
			log.Printf("published %s sos=%d", topic, sos)
		}
	}

	publish()

	for {
		select {
		case <-ctx.Done():
			log.Print("received shutdown signal, disconnecting")
			client.Disconnect(250)
			return
		case <-ticker.C:
			publish()
		}
	}
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
