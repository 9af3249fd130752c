package sensor

import (
	"bufio"
	"context"
	"log"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

// SerialLink reads newline-delimited sensor frames from a serial port. It is
// used with wired debugging rigs where the wireless bridge is bypassed.
type SerialLink struct {
	portName string
	baudRate int
	handler  Handler
	dropped  atomic.Int64
}

// NewSerialLink creates a serial link for the given port and baud rate.
func NewSerialLink(portName string, baudRate int, handler Handler) *SerialLink {
	if baudRate <= 0 {
		baudRate = 115200
	}
	return &SerialLink{
		portName: portName,
		baudRate: baudRate,
		handler:  handler,
	}
}

// Dropped returns the number of malformed frames discarded so far.
func (l *SerialLink) Dropped() int64 {
	return l.dropped.Load()
}

// Run opens the port and pumps lines until ctx is cancelled, reopening the
// port after read failures.
func (l *SerialLink) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		mode := &serial.Mode{
			BaudRate: l.baudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}

		port, err := serial.Open(l.portName, mode)
		if err != nil {
			log.Printf("sensor: open %s failed: %v", l.portName, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(reconnectDelay):
			}
			continue
		}

		l.handler.OnConnected()
		l.pump(ctx, port)
		l.handler.OnDisconnected()
	}
}

// pump scans lines until the port errors out or ctx is cancelled.
func (l *SerialLink) pump(ctx context.Context, port serial.Port) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			port.Close()
		case <-done:
			port.Close()
		}
	}()

	scan := bufio.NewScanner(port)
	for scan.Scan() {
		sample, err := ParseFrame(scan.Bytes())
		if err != nil {
			l.dropped.Add(1)
			continue
		}
		l.handler.OnSample(sample)
	}

	if err := scan.Err(); err != nil && ctx.Err() == nil {
		log.Printf("sensor: serial read failed: %v", err)
	}
}
