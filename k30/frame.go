package k30

import (
	"encoding/binary"
	"encoding/hex"
)

// Senseair K30 read-RAM command layout, see the "I2C on Senseair sensors" application note.
//
//	0x22: command 0x2 (read RAM) with 2 bytes to read in the low nibble
//	0x00: RAM address high byte
//	0x08: RAM address low byte (CO2 value)
//	0x2A: checksum, sum of the preceding bytes
const (
	cmdReadRAM  byte = 0x22
	ramAddrHigh byte = 0x00
	ramAddrCO2  byte = 0x08
	cmdChecksum byte = cmdReadRAM + ramAddrHigh + ramAddrCO2
)

const responseSize = 5

// CommandFrame is the 4 byte request written to the sensor.
type CommandFrame [4]byte

// ReadCO2Command returns the request reading the CO2 concentration from RAM address 0x08.
func ReadCO2Command() CommandFrame {
	return CommandFrame{cmdReadRAM, ramAddrHigh, ramAddrCO2, cmdChecksum}
}

func (f CommandFrame) String() string {
	return hex.EncodeToString(f[:])
}

// ResponseFrame is the 5 byte answer of the sensor:
// status, value high byte, value low byte, checksum, unused.
type ResponseFrame [responseSize]byte

// Status returns the echoed command/status byte.
func (f ResponseFrame) Status() byte {
	return f[0]
}

// Value returns the big-endian 16 bit payload.
func (f ResponseFrame) Value() uint16 {
	return binary.BigEndian.Uint16(f[1:3])
}

// Checksum returns the checksum byte sent by the sensor.
func (f ResponseFrame) Checksum() byte {
	return f[3]
}

// Valid checks the received checksum against the sum of the first three bytes.
func (f ResponseFrame) Valid() bool {
	return IsValid(f[:3], f[3])
}

func (f ResponseFrame) String() string {
	return hex.EncodeToString(f[:])
}
