// Command bodylisten receives joint datagrams from bodystream and prints them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/BodyStreamer/internal/logger"
	"github.com/bryanchriswhite/BodyStreamer/internal/wire"
)

var (
	port     int
	quiet    bool
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "bodylisten",
	Short: "Print joint datagrams received from bodystream",
	Example: `  # Listen on the default port
  bodylisten

  # Only report rates
  bodylisten --port 9100 --quiet`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().IntVarP(&port, "port", "p", 9000, "UDP port to listen on")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print datagrams, only rates")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger.Init(logLevel, true)
	log := logger.WithComponent("listen")

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", port, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("addr", conn.LocalAddr().String()).Msg("UDP listener started")

	var out io.Writer = os.Stdout
	if quiet {
		out = io.Discard
	}
	l := &listener{out: out}

	go l.report(ctx, time.Second)
	return l.serve(ctx, conn)
}

type listener struct {
	out io.Writer

	packets   atomic.Int64
	bytes     atomic.Int64
	malformed atomic.Int64
}

// serve reads datagrams until ctx is done, then closes conn.
func (l *listener) serve(ctx context.Context, conn net.PacketConn) error {
	log := logger.WithComponent("listen")

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buffer := make([]byte, wire.MaxCapacity)
	for {
		n, from, err := conn.ReadFrom(buffer)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warn().Err(err).Msg("Read error")
			continue
		}

		l.packets.Add(1)
		l.bytes.Add(int64(n))

		m, err := wire.Decode(buffer[:n])
		if err != nil {
			l.malformed.Add(1)
			log.Debug().Err(err).Stringer("from", from).Int("bytes", n).Msg("Malformed datagram")
			continue
		}
		fmt.Fprintf(l.out, "frame=%d body=%d joint=%d x=%g y=%g z=%g\n",
			m.Frame, m.BodyID, m.Joint, m.Position.X, m.Position.Y, m.Position.Z)
	}
}

func (l *listener) report(ctx context.Context, every time.Duration) {
	log := logger.WithComponent("listen")
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			packets := l.packets.Swap(0)
			bytes := l.bytes.Swap(0)
			malformed := l.malformed.Swap(0)
			if packets > 0 {
				log.Info().
					Int64("packets", packets).
					Float64("kb", float64(bytes)/1024).
					Int64("malformed", malformed).
					Msgf("Received %d packets/sec", packets)
			}
		}
	}
}
