package operator

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/bridge.go/pkg/bridge"
)

// Shell provides ishell backed operator console.
type Shell struct {
	Interactive bool

	Shell  *ishell.Shell
	Server *Server
}

const shellKey = "$shell"

var (
	evalOnly bool

	commands = []*ishell.Cmd{
		&SendCmd,
		&LastCmd,
		&StatusCmd,
	}
)

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
}

// NewShell creates a console on the server.
func NewShell(server *Server) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		Shell:       ishell.New(),
		Server:      server,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt("operator > ")
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// ParseCommand parses command values, missing trailing values are 0.
func ParseCommand(args []string) (cmd bridge.Command, err error) {
	if len(args) > bridge.NOut {
		return cmd, fmt.Errorf("at most %d values", bridge.NOut)
	}
	for n, arg := range args {
		val, err := strconv.ParseUint(arg, 10, 16)
		if err != nil {
			return cmd, fmt.Errorf("invalid V%d: %v", n+1, err)
		}
		cmd[n] = uint16(val)
	}
	return cmd, nil
}

// FormatValues prints values separated by spaces.
func FormatValues(values []uint16) string {
	strs := make([]string, len(values))
	for n, v := range values {
		strs[n] = strconv.FormatUint(uint64(v), 10)
	}
	return strings.Join(strs, " ")
}

var (
	// SendCmd sends a command to the node.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "V1 V2 V3 V4 V5",
		Func: func(c *ishell.Context) {
			cmd, err := ParseCommand(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			if err := ShellFrom(c).Server.Send(cmd); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		},
	}

	// LastCmd prints the latest telemetry.
	LastCmd = ishell.Cmd{
		Name:    "last",
		Aliases: []string{"l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			tlm, at, ok := ShellFrom(c).Server.Last()
			if !ok {
				c.Println("No telemetry received")
				return
			}
			c.Printf("%s (%v ago)\n", FormatValues(tlm[:]), time.Since(at).Truncate(time.Millisecond))
		},
	}

	// StatusCmd prints the connection status.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "",
		Func: func(c *ishell.Context) {
			st := ShellFrom(c).Server.Status()
			if st.Connected {
				c.Printf("connected %s", st.Remote)
			} else {
				c.Print("disconnected")
			}
			c.Printf(", frames %d, bad %d\n", st.Frames, st.BadFrames)
		},
	}
)
