package main

import (
	"flag"
	"log"
	"os"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/bridge.go/pkg/telemetry/mqtt"
)

var (
	mqttURL = "mqtt://localhost:1883/"
)

func init() {
	if val := os.Getenv("BRIDGE_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}

	q.Sub("bridge/#", func(topic string, payload []byte) {
		nodeID, kind, ok := mqtt.ParseTopic(topic)
		if !ok {
			return
		}
		var msg proto.Message
		switch kind {
		case "status":
			if len(payload) == 0 {
				log.Printf("%s: gone", nodeID)
				return
			}
			msg = &mqtt.LinkStatus{}
		default:
			msg = &mqtt.Sample{}
		}
		if err := proto.Unmarshal(payload, msg); err != nil {
			log.Printf("%s: bad %s: %v", nodeID, kind, err)
			return
		}
		log.Printf("%s: [%s] %s", nodeID, kind, msg.String())
	})
	<-(chan struct{})(nil)
}
