package conf

import (
	"fmt"
	"net"
)

// Listen configures the one address both sockets bind: the TCP
// acceptor and the datagram socket share the port number.
type Listen struct {
	Addr_ string       `yaml:"addr"`
	TCP   *net.TCPAddr `yaml:"-"`
	UDP   *net.UDPAddr `yaml:"-"`
}

func (l *Listen) setDefaults() {
	if l.Addr_ == "" {
		l.Addr_ = "0.0.0.0:9512"
	}
}

func (l *Listen) validate() []error {
	var errors []error

	tcpAddr, err := net.ResolveTCPAddr("tcp4", l.Addr_)
	if err != nil {
		errors = append(errors, fmt.Errorf("listen: invalid address '%s': %v", l.Addr_, err))
		return errors
	}
	if tcpAddr.Port == 0 {
		errors = append(errors, fmt.Errorf("listen: port is required (clients pair over a fixed port)"))
	}
	l.TCP = tcpAddr
	l.UDP = &net.UDPAddr{IP: tcpAddr.IP, Port: tcpAddr.Port}

	return errors
}
