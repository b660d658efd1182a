package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/venkytv/drive-events/pkg/cycle"
)

// scenario is a recorded drive: a list of cycle states, each held for
// Repeat consecutive ticks.
type scenario struct {
	Steps []step `yaml:"steps"`
}

type step struct {
	Repeat        int `yaml:"repeat"`
	cycle.Message `yaml:",inline"`
}

func loadScenario(path string) (scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return scenario{}, fmt.Errorf("read %s: %w", path, err)
	}
	return parseScenario(data)
}

func parseScenario(data []byte) (scenario, error) {
	var s scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return scenario{}, fmt.Errorf("yaml unmarshal: %w", err)
	}
	if len(s.Steps) == 0 {
		return scenario{}, errors.New("scenario has no steps")
	}
	for i := range s.Steps {
		if s.Steps[i].Repeat < 0 {
			return scenario{}, fmt.Errorf("step %d: repeat cannot be negative", i)
		}
		if s.Steps[i].Repeat == 0 {
			s.Steps[i].Repeat = 1
		}
	}
	return s, nil
}

// expand flattens the scenario into one message per tick.
func (s scenario) expand() []cycle.Message {
	var out []cycle.Message
	for _, st := range s.Steps {
		for i := 0; i < st.Repeat; i++ {
			out = append(out, st.Message)
		}
	}
	return out
}
