package main

import (
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robotalks/telenode/pkg/msgs"
	"github.com/robotalks/telenode/pkg/transport/mqtt"
)

// telemon prints the traffic of all nodes under a topic prefix. With -ack
// it also answers every frame, acting as a minimal collector.

var (
	mqttURL = "mqtt://localhost:1883/telenode/"
	ack     = ""
	proto   bool
)

func init() {
	if val := os.Getenv("TELENODE_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&ack, "ack", ack, "Reply sent to every frame, empty to only monitor.")
	flag.BoolVar(&proto, "proto", proto, "Nodes use protobuf envelopes.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	u, err := url.Parse(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	opts, prefix := mqtt.ClientOptionsFromURL(u)
	q := mqtt.NewQueue(opts, prefix)
	if err := q.Connect(mqtt.DefaultConnectTimeout); err != nil {
		log.Fatalln(err)
	}
	defer q.Close()

	err = q.Subscribe("+/+", mqtt.Handler(func(topic string, payload []byte) {
		items := strings.Split(topic, "/")
		nodeID, suffix := items[0], items[1]
		switch suffix {
		case mqtt.TopicMeta:
			if proto {
				if st, err := msgs.DecodeStatus(payload); err == nil {
					log.Printf("%s: online=%v", nodeID, st.Online)
					return
				}
			}
			log.Printf("%s: %s", nodeID, string(payload))
		case mqtt.TopicTelemetry, mqtt.TopicReply:
			var codec mqtt.Codec = mqtt.TextCodec{}
			if proto {
				codec = &mqtt.ProtoCodec{NodeID: nodeID}
			}
			frame, err := codec.Decode(payload)
			if err != nil {
				log.Printf("%s: bad %s: %v", nodeID, suffix, err)
				return
			}
			log.Printf("%s %s: %q", nodeID, suffix, string(frame))
			if suffix != mqtt.TopicTelemetry || ack == "" {
				return
			}
			reply, err := codec.Encode([]byte(ack + "\r\n"))
			if err != nil {
				log.Printf("%s: encode reply: %v", nodeID, err)
				return
			}
			// don't block the client's dispatcher.
			go func() {
				token := q.PubWith(nodeID+"/"+mqtt.TopicReply, reply, 1, false)
				if !token.WaitTimeout(time.Second) || token.Error() != nil {
					log.Printf("%s: reply not published: %v", nodeID, token.Error())
				}
			}()
		}
	}), mqtt.DefaultConnectTimeout)
	if err != nil {
		q.Close()
		log.Fatalln(err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
}
