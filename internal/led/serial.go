package led

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.bug.st/serial"

	"ok-to-wake/internal/light"
)

// Frame layout sent to the LED controller:
//
//	0xAA 0x55 cmd R G B brightness crc8
//
// crc8 covers cmd..brightness.
const (
	frameSync0 = 0xAA
	frameSync1 = 0x55
	frameLen   = 8

	cmdSetColor = 0x01
	cmdOff      = 0x02
)

// CRC-8 reflected poly 0xB2, init 0xFF, xorout 0xFF.
var crc8Table [256]uint8

func init() {
	const poly = 0xB2
	for i := 0; i < 256; i++ {
		crc := uint8(i)
		for bit := 0; bit < 8; bit++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ poly
			} else {
				crc >>= 1
			}
		}
		crc8Table[i] = crc
	}
}

func crc8(data []byte) uint8 {
	crc := uint8(0xFF)
	for _, b := range data {
		crc = crc8Table[crc^b]
	}
	return crc ^ 0xFF
}

func encodeFrame(c light.Color, brightness int) [frameLen]byte {
	var f [frameLen]byte
	f[0], f[1] = frameSync0, frameSync1
	f[2] = cmdSetColor
	if c == light.Off {
		f[2] = cmdOff
	}
	f[3], f[4], f[5] = c.RGB()
	f[6] = light.PercentToByte(brightness)
	f[7] = crc8(f[2:7])
	return f
}

// SerialDriver writes frames to a microcontroller over a serial port.
type SerialDriver struct {
	mu     sync.Mutex
	port   io.WriteCloser
	logger *slog.Logger
}

// OpenSerial opens portName at baud (default 115200).
func OpenSerial(portName string, baud int, logger *slog.Logger) (*SerialDriver, error) {
	if baud == 0 {
		baud = 115200
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("led serial: open %s: %w", portName, err)
	}
	logger.Info("serial led opened", "port", portName, "baud", baud)
	return newSerialDriver(port, logger), nil
}

func newSerialDriver(port io.WriteCloser, logger *slog.Logger) *SerialDriver {
	return &SerialDriver{port: port, logger: logger}
}

func (d *SerialDriver) Render(c light.Color, brightness int) error {
	f := encodeFrame(c, brightness)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.port.Write(f[:]); err != nil {
		return fmt.Errorf("led serial: write: %w", err)
	}
	d.logger.Debug("frame sent", "frame", fmt.Sprintf("% X", f[:]))
	return nil
}

func (d *SerialDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.port.Close()
}
