// Package notify is the MQTT notification bus between the scheduling
// tier, the comms managers and the transmitter processes.
package notify

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// Topic layout. Playlist updates fan out per transmitter group so a
// transmitter process only subscribes to its own group.
const (
	TopicSuiteConfig       = "skylark/config/suite"
	TopicProgramConfig     = "skylark/config/program"
	TopicGroupConfig       = "skylark/config/transmitter-group"
	TopicMessageActivation = "skylark/messages/activation"
	TopicMessageExpiration = "skylark/messages/expiration"
	TopicResetAll          = "skylark/config/reset"
	TopicPlaybackStatus    = "skylark/status/playback"
	TopicPlaylistSwitch    = "skylark/status/playlist-switch"
	TopicLiveBroadcast     = "skylark/status/live-broadcast"
)

// PlaylistTopic returns the per-group playlist update topic.
func PlaylistTopic(group string) string {
	return fmt.Sprintf("skylark/playlist/%s", group)
}

var connectHandler mqtt.OnConnectHandler = func(client mqtt.Client) {
	log.Info().Msg("connected to MQTT broker")
}

var connectLostHandler mqtt.ConnectionLostHandler = func(client mqtt.Client, err error) {
	log.Error().Err(err).Msg("MQTT connection lost")
}

type Client struct {
	mqtt mqtt.Client
}

// Connect dials the broker and blocks until the connection is up.
func Connect(brokerURL, clientID string) (*Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.OnConnect = connectHandler
	opts.OnConnectionLost = connectLostHandler

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return &Client{mqtt: c}, nil
}

// Close disconnects from the broker.
func (c *Client) Close() {
	c.mqtt.Disconnect(250)
}

// PublishJSON marshals v and publishes it at QoS 1.
func (c *Client) PublishJSON(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	token := c.mqtt.Publish(topic, 1, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("publish to %s: %w", topic, token.Error())
	}
	return nil
}

// PublishPlaylistUpdate announces a freshly written playlist artifact.
func (c *Client) PublishPlaylistUpdate(u PlaylistUpdated) error {
	return c.PublishJSON(PlaylistTopic(u.TransmitterGroup), u)
}

// PublishLiveBroadcastSwitch announces a live-broadcast takeover or
// release for a transmitter group.
func (c *Client) PublishLiveBroadcastSwitch(n LiveBroadcastSwitch) error {
	return c.PublishJSON(TopicLiveBroadcast, n)
}

func subscribeJSON[T any](c *Client, topic string, fn func(T)) error {
	token := c.mqtt.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		var v T
		if err := json.Unmarshal(msg.Payload(), &v); err != nil {
			log.Error().Err(err).Str("topic", msg.Topic()).
				Msg("discarding malformed notification")
			return
		}
		fn(v)
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, token.Error())
	}
	return nil
}

// ConfigHandlers receives the inbound configuration-change stream.
// Nil members are simply not subscribed.
type ConfigHandlers struct {
	SuiteChanged      func(SuiteConfigChanged)
	ProgramChanged    func(ProgramConfigChanged)
	GroupChanged      func(TransmitterGroupConfigChanged)
	ActivationChanged func(MessageActivationChanged)
	ForcedExpiration  func(MessageForcedExpiration)
	ResetAll          func(ResetAll)
}

// SubscribeConfig wires the configuration topics to the handlers.
func (c *Client) SubscribeConfig(h ConfigHandlers) error {
	if h.SuiteChanged != nil {
		if err := subscribeJSON(c, TopicSuiteConfig, h.SuiteChanged); err != nil {
			return err
		}
	}
	if h.ProgramChanged != nil {
		if err := subscribeJSON(c, TopicProgramConfig, h.ProgramChanged); err != nil {
			return err
		}
	}
	if h.GroupChanged != nil {
		if err := subscribeJSON(c, TopicGroupConfig, h.GroupChanged); err != nil {
			return err
		}
	}
	if h.ActivationChanged != nil {
		if err := subscribeJSON(c, TopicMessageActivation, h.ActivationChanged); err != nil {
			return err
		}
	}
	if h.ForcedExpiration != nil {
		if err := subscribeJSON(c, TopicMessageExpiration, h.ForcedExpiration); err != nil {
			return err
		}
	}
	if h.ResetAll != nil {
		if err := subscribeJSON(c, TopicResetAll, h.ResetAll); err != nil {
			return err
		}
	}
	return nil
}

// StatusHandlers receives the playback status stream produced by the
// transmitter processes.
type StatusHandlers struct {
	PlaybackStatus      func(MessagePlaybackStatus)
	PlaylistSwitch      func(PlaylistSwitch)
	LiveBroadcastSwitch func(LiveBroadcastSwitch)
}

// SubscribeStatus wires the status topics to the handlers.
func (c *Client) SubscribeStatus(h StatusHandlers) error {
	if h.PlaybackStatus != nil {
		if err := subscribeJSON(c, TopicPlaybackStatus, h.PlaybackStatus); err != nil {
			return err
		}
	}
	if h.PlaylistSwitch != nil {
		if err := subscribeJSON(c, TopicPlaylistSwitch, h.PlaylistSwitch); err != nil {
			return err
		}
	}
	if h.LiveBroadcastSwitch != nil {
		if err := subscribeJSON(c, TopicLiveBroadcast, h.LiveBroadcastSwitch); err != nil {
			return err
		}
	}
	return nil
}
