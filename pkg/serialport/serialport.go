// Package serialport implements the "P1 reader" task of spec §5: it owns
// the serial line exclusively, feeds every byte it reads into a
// frame.Assembler, hands completed telegrams to pkg/p1 for CRC validation
// and field extraction, and commits successfully parsed snapshots to a
// store.Store.
package serialport

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/tarm/serial"

	"github.com/ldiy/Kwartiwi-P1-firmware/pkg/frame"
	"github.com/ldiy/Kwartiwi-P1-firmware/pkg/log"
	"github.com/ldiy/Kwartiwi-P1-firmware/pkg/p1"
	"github.com/ldiy/Kwartiwi-P1-firmware/pkg/store"
)

// Config collects the parameters of the physical P1 port (spec §6): 8N1 at
// 115200 baud. Note: spec §6 also calls for inverted RX polarity on the
// configurable GPIO pin the original firmware used — that is a property of
// the microcontroller's UART peripheral with no equivalent on a hosted
// OS's serial driver, so it has no field here.
type Config struct {
	Device string
	Baud   int
}

// DefaultBaud is the P1 port's fixed baud rate per spec §6.
const DefaultBaud = 115200

// Reader owns a serial.Port exclusively and drives bytes through a
// frame.Assembler and pkg/p1 into a store.Store.
type Reader struct {
	port *serial.Port
	asm  *frame.Assembler
	st   *store.Store
}

// Open opens the configured serial device and returns a Reader ready to
// Run. The returned Reader owns the port until Close is called.
func Open(cfg Config, st *store.Store) (*Reader, error) {
	baud := cfg.Baud
	if baud == 0 {
		baud = DefaultBaud
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:     cfg.Device,
		Baud:     baud,
		Parity:   serial.ParityNone,
		StopBits: serial.Stop1,
	})
	if err != nil {
		return nil, err
	}
	return &Reader{port: port, asm: frame.New(), st: st}, nil
}

// Close releases the underlying serial port.
func (r *Reader) Close() error {
	return r.port.Close()
}

// Run drains the serial port one read at a time, feeding every byte to the
// assembler, until ctx is done or the port returns a fatal read error.
// Framing and CRC failures are absorbed here per spec §7: the data plane is
// soft, so a bad frame only costs that one telegram.
func (r *Reader) Run(ctx context.Context) error {
	buf := make([]byte, 256)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := r.port.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				time.Sleep(time.Millisecond)
				continue
			}
			return err
		}
		for _, b := range buf[:n] {
			telegram, ok := r.asm.Feed(b)
			if !ok {
				continue
			}
			r.handleFrame(telegram)
		}
	}
}

// handleFrame parses one assembled frame and, on success, commits it to the
// store. CRC and field-parse failures are logged and dropped per spec §7 —
// they never stop the reader or leave a partial snapshot observable.
func (r *Reader) handleFrame(raw []byte) {
	snap, err := p1.Parse(raw)
	if err != nil {
		log.Logger.Warn().Err(err).Msg("dropping telegram")
		return
	}
	r.st.Commit(snap)
}
