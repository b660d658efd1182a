package main

import (
	"testing"

	"github.com/venkytv/drive-events/pkg/cycle"
)

const hardLaunch = `
steps:
  - repeat: 3
    car: {a_ego: 3.2}
  - car: {a_ego: 1.0}
    model: {turn_direction: right}
  - repeat: 2
    controls: {steer_saturated_event_triggered: true}
    v_cruise: 19.3
`

func TestParseScenarioExpandsRepeats(t *testing.T) {
	sc, err := parseScenario([]byte(hardLaunch))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	msgs := sc.expand()
	if len(msgs) != 6 {
		t.Fatalf("expected 6 cycles, got %d", len(msgs))
	}
	if msgs[0].Car.AEgo != 3.2 || msgs[2].Car.AEgo != 3.2 {
		t.Fatalf("expected launch cycles to carry a_ego 3.2, got %+v", msgs[:3])
	}
	if msgs[3].Model.TurnDirection != cycle.TurnRight {
		t.Fatalf("expected right turn on cycle 3, got %s", msgs[3].Model.TurnDirection)
	}
	if !msgs[5].Controls.SteerSaturatedEventTriggered || msgs[5].VCruise != 19.3 {
		t.Fatalf("unexpected final cycle %+v", msgs[5])
	}
}

func TestParseScenarioRejectsEmpty(t *testing.T) {
	if _, err := parseScenario([]byte("steps: []\n")); err == nil {
		t.Fatalf("expected error for empty scenario")
	}
}

func TestParseScenarioRejectsNegativeRepeat(t *testing.T) {
	if _, err := parseScenario([]byte("steps:\n  - repeat: -1\n")); err == nil {
		t.Fatalf("expected error for negative repeat")
	}
}

func TestParseScenarioRejectsUnknownDirection(t *testing.T) {
	if _, err := parseScenario([]byte("steps:\n  - model: {turn_direction: up}\n")); err == nil {
		t.Fatalf("expected error for unknown turn direction")
	}
}
