// Package cycle defines the wire format for one control-loop cycle of vehicle
// and perception state, and for the events derived from it.
package cycle

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TurnDirection is the model's turn-intent output.
type TurnDirection int

const (
	TurnNone TurnDirection = iota
	TurnLeft
	TurnRight
)

func (d TurnDirection) String() string {
	switch d {
	case TurnNone:
		return "none"
	case TurnLeft:
		return "left"
	case TurnRight:
		return "right"
	}
	return fmt.Sprintf("TurnDirection(%d)", int(d))
}

func (d TurnDirection) MarshalText() ([]byte, error) {
	if d < TurnNone || d > TurnRight {
		return nil, fmt.Errorf("invalid turn direction %d", int(d))
	}
	return []byte(d.String()), nil
}

func (d *TurnDirection) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "", "none":
		*d = TurnNone
	case "left":
		*d = TurnLeft
	case "right":
		*d = TurnRight
	default:
		return fmt.Errorf("unknown turn direction %q", string(b))
	}
	return nil
}

// Car is the sampled vehicle kinematic state.
type Car struct {
	VEgo              float64 `json:"v_ego" yaml:"v_ego"` // m/s
	AEgo              float64 `json:"a_ego" yaml:"a_ego"` // m/s^2
	Standstill        bool    `json:"standstill" yaml:"standstill"`
	BrakePressed      bool    `json:"brake_pressed" yaml:"brake_pressed"`
	GasPressed        bool    `json:"gas_pressed" yaml:"gas_pressed"`
	TrafficModeActive bool    `json:"traffic_mode_active" yaml:"traffic_mode_active"`
}

// Controls carries the one-cycle pulses raised by the companion controller.
type Controls struct {
	NoEntryEventTriggered        bool `json:"no_entry_event_triggered" yaml:"no_entry_event_triggered"`
	SteerSaturatedEventTriggered bool `json:"steer_saturated_event_triggered" yaml:"steer_saturated_event_triggered"`
	FCWEventTriggered            bool `json:"fcw_event_triggered" yaml:"fcw_event_triggered"`
}

// Planner carries facts derived by the longitudinal planner.
type Planner struct {
	TakingCurveQuickly bool `json:"taking_curve_quickly" yaml:"taking_curve_quickly"`
	LeadDeparting      bool `json:"lead_departing" yaml:"lead_departing"`
	TrackingLead       bool `json:"tracking_lead" yaml:"tracking_lead"`
	ModelStopped       bool `json:"model_stopped" yaml:"model_stopped"`
	StopLightDetected  bool `json:"stop_light_detected" yaml:"stop_light_detected"`
	ForcingStop        bool `json:"forcing_stop" yaml:"forcing_stop"`
	SpeedLimitChanged  bool `json:"speed_limit_changed" yaml:"speed_limit_changed"`
}

// Model carries driving model metadata.
type Model struct {
	TurnDirection TurnDirection `json:"turn_direction" yaml:"turn_direction"`
}

// Message is one cycle of inputs exchanged over NATS.
type Message struct {
	Source      string    `json:"source,omitempty" yaml:"source,omitempty"`
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at,omitempty"`
	Car         Car       `json:"car" yaml:"car"`
	Controls    Controls  `json:"controls" yaml:"controls"`
	Planner     Planner   `json:"planner" yaml:"planner"`
	Model       Model     `json:"model" yaml:"model"`
	VCruise     float64   `json:"v_cruise" yaml:"v_cruise"` // target cruise speed, m/s
}

// Marshal renders the message as JSON for transport.
func (m Message) Marshal() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// Unmarshal decodes a cycle message from JSON.
func Unmarshal(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, err
	}
	return msg, msg.Validate()
}

// Validate checks structural fields only. Numeric ranges are left to the
// engine, which clamps rather than rejects.
func (m Message) Validate() error {
	if m.GeneratedAt.IsZero() {
		return errors.New("generated_at is required")
	}
	if d := m.Model.TurnDirection; d < TurnNone || d > TurnRight {
		return fmt.Errorf("invalid turn direction %d", int(d))
	}
	return nil
}

// Emission is the set of events derived for one cycle.
type Emission struct {
	Source  string        `json:"source,omitempty"`
	At      time.Time     `json:"at"`
	Frame   uint64        `json:"frame"`
	Elapsed time.Duration `json:"elapsed"`
	Events  []string      `json:"events"`
}

func (e Emission) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
