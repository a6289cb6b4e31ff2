package stream

import (
	"encoding/json"
	"fmt"

	"github.com/epics-kafka/forwarder/pkg/pv"
	"gopkg.in/yaml.v3"
)

// ConverterSpec names one conversion path to build: the schema to convert
// through, the destination topic, and an optional identity enabling
// converter sharing across Streams.
type ConverterSpec struct {
	Schema string `json:"schema" yaml:"schema" validate:"required"`
	Topic  string `json:"topic" yaml:"topic" validate:"required"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
}

// StreamSpec describes one channel-to-topics mapping, the unit an "add"
// command or a static config entry carries.
type StreamSpec struct {
	Channel    string          `json:"channel" validate:"required"`
	Provider   pv.Provider     `json:"channel_provider_type,omitempty" validate:"omitempty,oneof=pva ca"`
	Converters []ConverterSpec `json:"-" validate:"omitempty,dive"`
}

// rawStreamSpec mirrors the wire shape exactly, including the
// "converter": <ConverterSpec> | [<ConverterSpec> ...] flexibility, which
// json.Unmarshal cannot express directly on StreamSpec itself.
type rawStreamSpec struct {
	Channel             string          `json:"channel"`
	ChannelProviderType string          `json:"channel_provider_type"`
	Converter           json.RawMessage `json:"converter"`
}

// UnmarshalJSON implements the "converter" single-or-array flexibility and
// defaults the provider to pva when omitted.
func (s *StreamSpec) UnmarshalJSON(data []byte) error {
	var raw rawStreamSpec
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Channel = raw.Channel
	if raw.ChannelProviderType == "" {
		s.Provider = pv.ProviderPVA
	} else {
		s.Provider = pv.Provider(raw.ChannelProviderType)
	}

	s.Converters = nil
	if len(raw.Converter) == 0 || string(raw.Converter) == "null" {
		return nil
	}

	// Try array form first, then fall back to a single object.
	var list []ConverterSpec
	if err := json.Unmarshal(raw.Converter, &list); err == nil {
		s.Converters = list
		return nil
	}
	var single ConverterSpec
	if err := json.Unmarshal(raw.Converter, &single); err != nil {
		return fmt.Errorf("stream: invalid converter field: %w", err)
	}
	s.Converters = []ConverterSpec{single}
	return nil
}

// MarshalJSON renders back the wire shape, preferring the single-object
// form when there is exactly one converter so a spec round-trips
// unchanged.
func (s StreamSpec) MarshalJSON() ([]byte, error) {
	raw := struct {
		Channel             string      `json:"channel"`
		ChannelProviderType string      `json:"channel_provider_type,omitempty"`
		Converter           interface{} `json:"converter,omitempty"`
	}{
		Channel:             s.Channel,
		ChannelProviderType: string(s.Provider),
	}

	switch len(s.Converters) {
	case 0:
	case 1:
		raw.Converter = s.Converters[0]
	default:
		raw.Converter = s.Converters
	}
	return json.Marshal(raw)
}

// ChannelInfo projects the pv.ChannelInfo this spec implies.
func (s StreamSpec) ChannelInfo() pv.ChannelInfo {
	return pv.ChannelInfo{Name: s.Channel, Provider: s.Provider}
}

// rawYAMLStreamSpec mirrors rawStreamSpec for the static config file path
// (pkg/config), which loads StreamSpec entries through yaml.v3 rather
// than encoding/json; the same single-object-or-array and default-
// provider rules apply there too.
type rawYAMLStreamSpec struct {
	Channel             string    `yaml:"channel"`
	ChannelProviderType string    `yaml:"channel_provider_type"`
	Converter           yaml.Node `yaml:"converter"`
}

// UnmarshalYAML implements the same flexibility as UnmarshalJSON for
// config-file-sourced StreamSpecs.
func (s *StreamSpec) UnmarshalYAML(node *yaml.Node) error {
	var raw rawYAMLStreamSpec
	if err := node.Decode(&raw); err != nil {
		return err
	}

	s.Channel = raw.Channel
	if raw.ChannelProviderType == "" {
		s.Provider = pv.ProviderPVA
	} else {
		s.Provider = pv.Provider(raw.ChannelProviderType)
	}

	s.Converters = nil
	switch raw.Converter.Kind {
	case 0:
		return nil
	case yaml.SequenceNode:
		var list []ConverterSpec
		if err := raw.Converter.Decode(&list); err != nil {
			return fmt.Errorf("stream: invalid converter field: %w", err)
		}
		s.Converters = list
	default:
		var single ConverterSpec
		if err := raw.Converter.Decode(&single); err != nil {
			return fmt.Errorf("stream: invalid converter field: %w", err)
		}
		s.Converters = []ConverterSpec{single}
	}
	return nil
}
