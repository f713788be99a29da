package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/gologme/log"
	"github.com/spf13/pflag"

	"github.com/Fraser999/crust"
	"github.com/Fraser999/crust/event"
	"github.com/Fraser999/crust/types"
)

var listen = pflag.StringP("listen", "l", "[::]:5483", "address the bootstrap acceptor listens on")
var stunServers = pflag.StringSlice("stun", nil, "STUN server (ip:port) asked for our public UDP address, may be repeated")
var stunTimeout = pflag.Duration("stun-timeout", 0, "how long to wait for each STUN server (0 for the default)")
var multicast = pflag.Bool("multicast", true, "announce our acceptor on the link-local multicast group and bootstrap to others")
var verbose = pflag.BoolP("verbose", "v", false, "log debug messages")

func main() {
	pflag.Parse()
	logger := log.New(os.Stdout, "", log.Flags())
	for _, level := range []string{"error", "warn", "info"} {
		logger.EnableLevel(level)
	}
	if *verbose {
		logger.EnableLevel("debug")
	}

	listenAddr, err := netip.ParseAddrPort(*listen)
	if err != nil {
		logger.Fatalln("bad --listen:", err)
	}
	opts := []crust.Option{crust.WithListenAddr(listenAddr), crust.WithLogger(logger)}
	var servers []netip.AddrPort
	for _, s := range *stunServers {
		server, err := netip.ParseAddrPort(s)
		if err != nil {
			logger.Fatalln("bad --stun:", err)
		}
		servers = append(servers, server)
	}
	opts = append(opts, crust.WithSTUNServers(servers...))
	if *stunTimeout > 0 {
		opts = append(opts, crust.WithSTUNTimeout(*stunTimeout))
	}

	svc, err := crust.NewService(opts...)
	if err != nil {
		logger.Fatalln("starting service:", err)
	}
	ep, err := svc.Start()
	if err != nil {
		svc.Close()
		logger.Fatalln("starting acceptor:", err)
	}
	fmt.Println("Bootstrap acceptor listening on", ep)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		printEvents(svc.Events())
	}()
	if len(servers) > 0 {
		if err := svc.PrepareContactInfo(0); err != nil {
			logger.Warnln("preparing contact info:", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *multicast {
		b, err := newBeacon(ep.Addr.Port(), logger)
		if err != nil {
			logger.Warnln("multicast disabled:", err)
		} else {
			defer b.Close()
			go b.announce(ctx)
			go b.listen(bootstrapper(svc, logger))
		}
	}
	<-ctx.Done()
	if err := svc.Close(); err != nil {
		logger.Warnln("closing service:", err)
	}
	<-printed
}

// bootstrapper returns a beacon callback that bootstrap-connects once to every node announced.
func bootstrapper(svc *crust.Service, logger *log.Logger) func(id [8]byte, acceptor netip.AddrPort) {
	seen := make(map[[8]byte]struct{})
	var token uint32
	return func(id [8]byte, acceptor netip.AddrPort) {
		if _, isIn := seen[id]; isIn {
			return
		}
		seen[id] = struct{}{}
		token++
		logger.Infoln("found node", hex.EncodeToString(id[:]), "at", acceptor)
		if err := svc.BootstrapConnect(token, types.NewEndpoint(types.TCP, acceptor)); err != nil {
			logger.Warnln("bootstrap connect to", acceptor, "failed:", err)
		}
	}
}

func printEvents(events <-chan event.Event) {
	var streams []net.Conn
	defer func() {
		for _, stream := range streams {
			stream.Close()
		}
	}()
	for ev := range events {
		switch ev := ev.(type) {
		case event.OnBootstrapAccept:
			fmt.Println("Accepted bootstrap connection", ev.Connection)
			streams = append(streams, ev.Stream)
		case event.OnBootstrapConnect:
			if !ev.Result.Ok() {
				fmt.Println("Bootstrap connect", ev.Result.Token, "failed:", ev.Result.Err)
				continue
			}
			fmt.Println("Bootstrap connected", ev.Result.Connection)
			streams = append(streams, ev.Result.Stream)
		case event.OnConnect:
			if !ev.Result.Ok() {
				fmt.Println("Connect", ev.Result.Token, "failed:", ev.Result.Err)
				continue
			}
			fmt.Println("Connected", ev.Result.Connection)
			streams = append(streams, ev.Result.Stream)
		case event.BootstrapFinished:
			fmt.Println("Bootstrap finished")
		case event.ExternalEndpoints:
			fmt.Println("External endpoints", ev.Endpoints)
		case event.ContactInfoPrepared:
			if !ev.Result.Ok() {
				fmt.Println("Contact info failed:", ev.Result.Err)
				continue
			}
			their, err := ev.Result.Info.TheirInfo().MarshalBinary()
			if err != nil {
				fmt.Println("Encoding contact info failed:", err)
			} else {
				fmt.Println("Our contact info", hex.EncodeToString(their))
			}
			ev.Result.Info.Close()
		default:
			fmt.Printf("Event %#v\n", ev)
		}
	}
}
