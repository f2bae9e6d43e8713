package conf

import "fmt"

// Devices configures the controller telemetry pump.
type Devices struct {
	PollHz int `yaml:"poll_hz"`
}

func (d *Devices) setDefaults() {
	if d.PollHz == 0 {
		d.PollHz = 60
	}
}

func (d *Devices) validate() []error {
	var errors []error

	if d.PollHz < 1 || d.PollHz > 1000 {
		errors = append(errors, fmt.Errorf("devices: poll_hz must be between 1-1000"))
	}

	return errors
}
