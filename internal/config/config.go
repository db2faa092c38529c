// Package config holds the client's CLI-derived configuration, in the
// cs104.Config style: typed fields, range-checked defaults applied by
// Valid, and a DefaultReliability constructor.
package config

import (
	"errors"
	"time"
)

// Transport selects the wire variant.
type Transport string

const (
	TCP Transport = "tcp"
	UDP Transport = "udp"
)

// Reliability holds the datagram-transport timing knobs (-d, -r).
type Reliability struct {
	// ConfirmTimeout is "T": how long to wait for a CONFIRM before
	// retransmitting. Default 250ms.
	ConfirmTimeout time.Duration

	// MaxRetransmissions is "R": how many times to resend before giving
	// up. Default 3.
	MaxRetransmissions int

	// ReplyTimeout is the higher wall-clock budget for AUTH/JOIN REPLY
	// waits. Not CLI-configurable; fixed at its default.
	ReplyTimeout time.Duration
}

// Valid applies defaults for zero fields and rejects out-of-range values,
// mirroring cs104.Config.Valid.
func (r *Reliability) Valid() error {
	if r.ConfirmTimeout == 0 {
		r.ConfirmTimeout = 250 * time.Millisecond
	} else if r.ConfirmTimeout < 0 {
		return errors.New("confirm timeout must be positive")
	}
	if r.MaxRetransmissions == 0 {
		r.MaxRetransmissions = 3
	} else if r.MaxRetransmissions < 0 {
		return errors.New("retransmission count must be non-negative")
	}
	if r.ReplyTimeout == 0 {
		r.ReplyTimeout = 5000 * time.Millisecond
	}
	return nil
}

// DefaultReliability returns a Reliability with every field at its
// default value.
func DefaultReliability() Reliability {
	r := Reliability{}
	_ = r.Valid()
	return r
}

// Dial holds the server address (-t, -s, -p).
type Dial struct {
	Transport Transport
	Host      string
	Port      uint16
}

// Valid checks that Transport is one of "tcp"/"udp" and Host is set,
// applying the default port when unset.
func (d *Dial) Valid() error {
	switch d.Transport {
	case TCP, UDP:
	default:
		return errors.New(`transport must be "tcp" or "udp"`)
	}
	if d.Host == "" {
		return errors.New("server address is required")
	}
	if d.Port == 0 {
		d.Port = 4567
	}
	return nil
}
