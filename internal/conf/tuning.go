package conf

import "fmt"

// Tuning holds socket-level knobs for the shared datagram socket.
type Tuning struct {
	UDPReadBuffer  int `yaml:"udp_read_buffer"`
	UDPWriteBuffer int `yaml:"udp_write_buffer"`
}

func (t *Tuning) setDefaults() {
	if t.UDPReadBuffer == 0 {
		t.UDPReadBuffer = 8 * 1024 * 1024
	}
	if t.UDPWriteBuffer == 0 {
		t.UDPWriteBuffer = 8 * 1024 * 1024
	}
}

func (t *Tuning) validate() []error {
	var errors []error

	if t.UDPReadBuffer < 64*1024 {
		errors = append(errors, fmt.Errorf("tuning: udp_read_buffer must be >= 64 KiB"))
	}
	if t.UDPWriteBuffer < 64*1024 {
		errors = append(errors, fmt.Errorf("tuning: udp_write_buffer must be >= 64 KiB"))
	}

	return errors
}
