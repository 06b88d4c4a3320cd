// Command bot joins a UDP server, waits for its welcome and walks its
// avatar in a circle, logging every spawn notice it receives.
package main

import (
	"errors"
	"flag"
	"math"
	"net"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/QYUbit/ticksim/pkg/entity"
	"github.com/QYUbit/ticksim/pkg/protocol"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4242", "server UDP address")
	moves := flag.Int("moves", 20, "number of move packets to send")
	interval := flag.Duration("interval", 100*time.Millisecond, "delay between moves")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "bot"})

	conn, err := net.Dial("udp", *addr)
	if err != nil {
		logger.Fatal("Dial UDP", "error", err)
	}
	defer conn.Close()

	b := &bot{conn: conn, logger: logger}

	avatar, err := b.join(5 * time.Second)
	if err != nil {
		logger.Fatal("Join", "error", err)
	}
	logger.Info("Joined", "avatar", avatar.ID, "local", conn.LocalAddr())

	go b.listen()

	for i := range *moves {
		angle := float64(i) * 2 * math.Pi / float64(*moves)
		pos := entity.Position{X: float32(math.Cos(angle)), Y: 0, Z: float32(math.Sin(angle))}

		if _, err := conn.Write(protocol.EncodeMove(b.nextSeq(), avatar.ID, pos)); err != nil {
			logger.Error("Send move", "error", err)
			continue
		}
		time.Sleep(*interval)
	}

	logger.Info("Done")
}

type bot struct {
	conn   net.Conn
	logger *log.Logger
	seq    uint32
}

func (b *bot) nextSeq() uint32 {
	b.seq++
	return b.seq
}

// join retries the join packet until a welcome arrives or timeout passes.
func (b *bot) join(timeout time.Duration) (entity.Entity, error) {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 1500)

	for time.Now().Before(deadline) {
		if _, err := b.conn.Write(protocol.EncodeJoin(b.nextSeq())); err != nil {
			return entity.Entity{}, err
		}

		b.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		for {
			n, err := b.conn.Read(buf)
			if err != nil {
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					break
				}
				return entity.Entity{}, err
			}

			p, err := protocol.Decode(buf[:n])
			if err != nil {
				b.logger.Warn("Bad packet", "error", err)
				continue
			}
			if w, ok := p.(protocol.Welcome); ok {
				b.conn.SetReadDeadline(time.Time{})
				return w.Entity, nil
			}
			b.logSpawn(p)
		}
	}

	return entity.Entity{}, errors.New("no welcome before timeout")
}

func (b *bot) listen() {
	buf := make([]byte, 1500)
	for {
		n, err := b.conn.Read(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				b.logger.Error("Read", "error", err)
			}
			return
		}

		p, err := protocol.Decode(buf[:n])
		if err != nil {
			b.logger.Warn("Bad packet", "error", err)
			continue
		}
		b.logSpawn(p)
	}
}

func (b *bot) logSpawn(p protocol.Packet) {
	if s, ok := p.(protocol.Spawn); ok {
		b.logger.Info("Avatar present", "entity", s.Entity.ID, "position", s.Entity.Position)
	}
}
