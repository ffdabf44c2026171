// Command oophmd is the bridge daemon: it accepts the host channel
// connection, runs the session engine, and serves the inspector's HTTP
// endpoints, grounded on cmd/sql-tapd/main.go's flag + run() shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mickamy/oophm-bridge/allowlist"
	"github.com/mickamy/oophm-bridge/bridge"
	"github.com/mickamy/oophm-bridge/broker"
	"github.com/mickamy/oophm-bridge/chatter"
	"github.com/mickamy/oophm-bridge/hostchannel"
	"github.com/mickamy/oophm-bridge/message"
	"github.com/mickamy/oophm-bridge/refhost"
	"github.com/mickamy/oophm-bridge/web"
)

var version = "dev"

func main() {
	fs := flag.NewFlagSet("oophmd", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "oophmd — hosted-mode bridge daemon\n\nUsage:\n  oophmd [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	listen := fs.String("listen", fmt.Sprintf(":%d", hostchannel.DefaultPort), "host channel listen address")
	inspect := fs.String("inspect", "", "inspector HTTP address (e.g. :8080); empty disables it")
	allow := fs.String("allow", "*", "comma-separated allow-list entries (host, host:port, or * for all); applied to the listen address' peers")
	chattyThreshold := fs.Int("chatty-threshold", 5, "chatty-call detection threshold (0 to disable)")
	chattyWindow := fs.Duration("chatty-window", time.Second, "chatty-call detection time window")
	chattyCooldown := fs.Duration("chatty-cooldown", 10*time.Second, "chatty-call alert cooldown per call signature")
	showVersion := fs.Bool("version", false, "show version and exit")

	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("oophmd %s\n", version)
		return
	}

	if err := run(*listen, *inspect, *allow, *chattyThreshold, *chattyWindow, *chattyCooldown); err != nil {
		log.Fatal(err)
	}
}

func run(listen, inspect, allow string, chattyThreshold int, chattyWindow, chattyCooldown time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	list, err := allowlist.New(strings.Split(allow, ","))
	if err != nil {
		return fmt.Errorf("oophmd: allow-list: %w", err)
	}

	b := broker.New(256)

	if chattyThreshold > 0 {
		det := chatter.New(chattyThreshold, chattyWindow, chattyCooldown)
		log.Printf("chatty-call detection enabled (threshold=%d, window=%s, cooldown=%s)",
			chattyThreshold, chattyWindow, chattyCooldown)
		go watchChatter(ctx, b, det, chattyWindow)
	}

	if inspect != "" {
		var lc net.ListenConfig
		lis, err := lc.Listen(ctx, "tcp", inspect)
		if err != nil {
			return fmt.Errorf("oophmd: listen inspect %s: %w", inspect, err)
		}
		webSrv := web.New(b)
		go func() {
			log.Printf("inspector listening on %s", inspect)
			if err := webSrv.Serve(lis); err != nil {
				log.Printf("oophmd: inspector serve: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = webSrv.Shutdown(shutdownCtx)
		}()
	}

	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", listen)
	if err != nil {
		return fmt.Errorf("oophmd: listen %s: %w", listen, err)
	}
	defer lis.Close()

	log.Printf("host channel listening on %s (allow=%q)", listen, allow)

	go func() {
		<-ctx.Done()
		_ = lis.Close()
	}()

	for {
		conn, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("oophmd: accept: %w", err)
		}

		peer := conn.RemoteAddr().(*net.TCPAddr)
		if !list.Allow(peer.IP.String(), peer.Port) {
			log.Printf("rejecting connection from %s: not in allow-list", peer)
			_ = conn.Close()
			continue
		}

		go handleConn(hostchannel.Accept(conn), b)
	}
}

// watchChatter feeds every inbound Invoke's summary (session.go already
// runs it through callfmt.Summarize before publishing) into det, the way
// the teacher's N+1 detector feeds normalized SQL text to
// detect.Detector, logging an alert whenever the same summary repeats
// past the configured threshold within the window. The summary includes
// the literal argument values, so only calls with identical arguments
// are counted together.
func watchChatter(ctx context.Context, b *broker.Broker, det *chatter.Detector, window time.Duration) {
	ch, unsub := b.Subscribe()
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Direction != "recv" || ev.TypeName != message.TypeInvoke.String() {
				continue
			}
			r := det.Record(ev.Summary, ev.At)
			if r.Alert != nil {
				log.Printf("chatty call detected: %q (%d times in %s, session %s)",
					r.Alert.Signature, r.Alert.Count, window, ev.SessionID)
			}
		}
	}
}

func handleConn(ch *hostchannel.Channel, b *broker.Broker) {
	host := refhost.New()
	sess := bridge.New(ch, host, b)

	log.Printf("session %s: connected from %s", sess.ID(), ch.RemoteAddr())

	if err := sess.Handshake(nil); err != nil {
		log.Printf("session %s: handshake failed: %v", sess.ID(), err)
		return
	}
	log.Printf("session %s: active (version %d)", sess.ID(), sess.Version())

	if err := sess.Serve(); err != nil {
		log.Printf("session %s: serve: %v", sess.ID(), err)
		return
	}
	log.Printf("session %s: closed", sess.ID())
}
