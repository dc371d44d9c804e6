package link

import (
	"fmt"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/classb/pkg/cli/sh"
	"github.com/robotalks/classb/pkg/selftest"
)

// ExchangeResult is the output of send and probe.
type ExchangeResult struct {
	Address  byte     `json:"address"`
	Request  hexBytes `json:"request"`
	Response hexBytes `json:"response,omitempty"`
	OK       bool     `json:"ok"`
	Error    string   `json:"error,omitempty"`
}

// String implements fmt.Stringer.
func (r *ExchangeResult) String() string {
	if !r.OK {
		return fmt.Sprintf("%02x < %s: %s", r.Address, r.Request, r.Error)
	}
	return fmt.Sprintf("%02x < %s > %s", r.Address, r.Request, r.Response)
}

// StateResult is the output of state.
type StateResult struct {
	State    string   `json:"state"`
	Response hexBytes `json:"response,omitempty"`
}

// String implements fmt.Stringer.
func (r *StateResult) String() string {
	if len(r.Response) > 0 {
		return r.State + " " + r.Response.String()
	}
	return r.State
}

type hexBytes []byte

func (b hexBytes) String() string {
	return fmt.Sprintf("% x", []byte(b))
}

func (b hexBytes) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%x", []byte(b))), nil
}

func exchange(c *ishell.Context, verify bool) {
	addr, req, err := sh.ParseRequest(c.Args)
	if err != nil {
		c.Err(err)
		return
	}
	s := sh.ShellFrom(c)
	result := &ExchangeResult{Address: addr, Request: req}
	resp, err := s.Exchange(addr, req)
	if err == nil && verify {
		err = selftest.Verify(req, resp)
	}
	result.Response = resp
	if err != nil {
		result.Error = err.Error()
	} else {
		result.OK = true
	}
	sh.Print(c, result)
}

var (
	// SendCmd sends a request and prints the response.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "ADDR HEX...",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			exchange(c, false)
		}),
	}

	// ProbeCmd sends a pattern and verifies the complement comes back.
	ProbeCmd = ishell.Cmd{
		Name:    "probe",
		Aliases: []string{"p"},
		Help:    "ADDR HEX...",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			exchange(c, true)
		}),
	}

	// StateCmd prints the master state.
	StateCmd = ishell.Cmd{
		Name: "state",
		Help: "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			m := &sh.ShellFrom(c).Link.Master
			sh.Print(c, &StateResult{
				State:    m.State().String(),
				Response: m.Response(),
			})
		}),
	}
)

func init() {
	sh.AddCmds(
		&SendCmd,
		&ProbeCmd,
		&StateCmd,
	)
}
