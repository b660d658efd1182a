package events

// Name identifies an event emitted to the alert layer.
type Name string

const (
	ForcingStop                 Name = "forcingStop"
	GreenLight                  Name = "greenLight"
	HolidayActive               Name = "holidayActive"
	LeadDeparting               Name = "leadDeparting"
	OpenpilotCrashed            Name = "openpilotCrashed"
	OpenpilotCrashedRandomEvent Name = "openpilotCrashedRandomEvent"
	Accel30                     Name = "accel30"
	Accel35                     Name = "accel35"
	Accel40                     Name = "accel40"
	DejaVuCurve                 Name = "dejaVuCurve"
	HAL9000                     Name = "hal9000"
	FirefoxSteerSaturated       Name = "firefoxSteerSaturated"
	GoatSteerSaturated          Name = "goatSteerSaturated"
	VCruise69                   Name = "vCruise69"
	YourFrogTriedToKillMe       Name = "yourFrogTriedToKillMe"
	SpeedLimitChanged           Name = "speedLimitChanged"
	TorqueNNLoad                Name = "torqueNNLoad"
	TrafficModeActive           Name = "trafficModeActive"
	TrafficModeInactive         Name = "trafficModeInactive"
	TurningLeft                 Name = "turningLeft"
	TurningRight                Name = "turningRight"
)

// Set is an insertion-ordered set of event names.
type Set struct {
	names []Name
	seen  map[Name]struct{}
}

func NewSet() *Set {
	return &Set{seen: make(map[Name]struct{})}
}

// Add appends n unless it is already present.
func (s *Set) Add(n Name) {
	if _, ok := s.seen[n]; ok {
		return
	}
	s.seen[n] = struct{}{}
	s.names = append(s.names, n)
}

func (s *Set) Has(n Name) bool {
	_, ok := s.seen[n]
	return ok
}

func (s *Set) Len() int { return len(s.names) }

// Names returns the events in insertion order.
func (s *Set) Names() []Name {
	out := make([]Name, len(s.names))
	copy(out, s.names)
	return out
}

// Strings returns the events in insertion order as plain strings.
func (s *Set) Strings() []string {
	out := make([]string, len(s.names))
	for i, n := range s.names {
		out[i] = string(n)
	}
	return out
}
