package port

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"

	"go.bug.st/serial"
	"golang.org/x/net/websocket"
)

// DefaultBaudRate is used for serial ports when baud is not specified.
const DefaultBaudRate = 115200

// ErrUnknownScheme indicates the scheme of a port URL is not supported.
type ErrUnknownScheme struct {
	Scheme string
}

// Error implements error.
func (e *ErrUnknownScheme) Error() string {
	return "unknown port scheme: " + e.Scheme
}

// Open opens a byte stream from a URL.
// Supported forms are:
//   serial:///dev/ttyS0?baud=115200&parity=none&stopbits=1
//   /dev/ttyUSB0 (a bare device path, same as serial://)
//   tcp://host:port
//   ws://host:port/path
func Open(rawurl string) (io.ReadWriteCloser, error) {
	if !strings.Contains(rawurl, "://") {
		return openSerial(rawurl, nil)
	}
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "serial":
		path := u.Path
		if u.Host != "" {
			path = u.Host + path
		}
		return openSerial(path, u.Query())
	case "tcp":
		return net.Dial("tcp", u.Host)
	case "ws", "wss":
		origin := "http://" + u.Host
		if u.Scheme == "wss" {
			origin = "https://" + u.Host
		}
		conn, err := websocket.Dial(u.String(), "", origin)
		if err != nil {
			return nil, err
		}
		conn.PayloadType = websocket.BinaryFrame
		return conn, nil
	}
	return nil, &ErrUnknownScheme{Scheme: u.Scheme}
}

// SerialMode builds the serial port settings from URL query values.
func SerialMode(q url.Values) (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if v := q.Get("baud"); v != "" {
		baud, err := strconv.Atoi(v)
		if err != nil || baud <= 0 {
			return nil, fmt.Errorf("invalid baud %q", v)
		}
		mode.BaudRate = baud
	}
	if v := q.Get("databits"); v != "" {
		bits, err := strconv.Atoi(v)
		if err != nil || bits < 5 || bits > 8 {
			return nil, fmt.Errorf("invalid databits %q", v)
		}
		mode.DataBits = bits
	}
	switch strings.ToLower(q.Get("parity")) {
	case "", "none", "n":
	case "odd", "o":
		mode.Parity = serial.OddParity
	case "even", "e":
		mode.Parity = serial.EvenParity
	case "mark", "m":
		mode.Parity = serial.MarkParity
	case "space", "s":
		mode.Parity = serial.SpaceParity
	default:
		return nil, fmt.Errorf("invalid parity %q", q.Get("parity"))
	}
	switch q.Get("stopbits") {
	case "", "1":
	case "1.5":
		mode.StopBits = serial.OnePointFiveStopBits
	case "2":
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("invalid stopbits %q", q.Get("stopbits"))
	}
	return mode, nil
}

func openSerial(path string, q url.Values) (io.ReadWriteCloser, error) {
	mode, err := SerialMode(q)
	if err != nil {
		return nil, err
	}
	p, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return p, nil
}
