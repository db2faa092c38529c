// Command ipk24chat-client is a terminal chat client speaking the text
// and binary IPK24-CHAT wire grammars over TCP and UDP respectively.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/Mr-Annonym/ipk24chat-client/internal/client"
	"github.com/Mr-Annonym/ipk24chat-client/internal/clog"
	"github.com/Mr-Annonym/ipk24chat-client/internal/command"
	"github.com/Mr-Annonym/ipk24chat-client/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet("ipk24chat-client", pflag.ContinueOnError)
	flags.SortFlags = false

	transport := flags.StringP("transport", "t", "", `transport protocol used for connection: "tcp" or "udp"`)
	host := flags.StringP("server", "s", "", "server IP address or hostname")
	port := flags.Uint16P("port", "p", 4567, "server port")
	confirmTimeoutMs := flags.Uint16P("timeout", "d", 250, "UDP confirmation timeout, in milliseconds")
	maxRetransmissions := flags.Uint8P("retries", "r", 3, "maximum number of UDP retransmissions")
	verbose := flags.BoolP("verbose", "v", false, "log protocol traffic and internal events to stderr")
	help := flags.BoolP("help", "h", false, "print this help and exit")

	if err := flags.Parse(os.Args[1:]); err != nil {
		return 1
	}
	if *help {
		fmt.Fprintln(os.Stdout, "ipk24chat-client connects to an IPK24-CHAT server over TCP or UDP.")
		fmt.Fprintln(os.Stdout)
		flags.PrintDefaults()
		fmt.Fprintln(os.Stdout)
		fmt.Fprintln(os.Stdout, command.HelpText)
		return 0
	}

	log := clog.New("ipk24chat-client: ")
	log.LogMode(*verbose)

	dial := config.Dial{Transport: config.Transport(*transport), Host: *host, Port: *port}
	if err := dial.Valid(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		return 1
	}

	resolved, err := resolveHost(dial.Host)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		return 1
	}
	dial.Host = resolved

	switch dial.Transport {
	case config.TCP:
		return client.RunStream(dial, os.Stdin, os.Stdout, log)
	case config.UDP:
		rel := config.Reliability{
			ConfirmTimeout:     time.Duration(*confirmTimeoutMs) * time.Millisecond,
			MaxRetransmissions: int(*maxRetransmissions),
		}
		if err := rel.Valid(); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
			return 1
		}
		return client.RunDatagram(dial, rel, os.Stdin, os.Stdout, log)
	default:
		fmt.Fprintf(os.Stderr, "ERROR: unsupported transport %q\n", dial.Transport)
		return 1
	}
}

// resolveHost returns host unchanged if it is already an IP literal,
// otherwise resolves it to its first IPv4 address.
func resolveHost(host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}
	addr, err := net.ResolveIPAddr("ip4", host)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", host, err)
	}
	return addr.IP.String(), nil
}
