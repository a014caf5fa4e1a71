package bt

import (
	"fmt"

	"tinygo.org/x/bluetooth"
)

// Heart Rate Service
const (
	ServiceUUIDHeartRate         = "0000180d-0000-1000-8000-00805f9b34fb"
	CharUUIDHeartRateMeasurement = "00002a37-0000-1000-8000-00805f9b34fb"
)

var (
	heartRateServiceUUID     = mustParseUUID(ServiceUUIDHeartRate)
	heartRateMeasurementUUID = mustParseUUID(CharUUIDHeartRateMeasurement)
)

func mustParseUUID(s string) bluetooth.UUID {
	uuid, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic(fmt.Sprintf("bt: bad uuid %q: %v", s, err))
	}
	return uuid
}

// ParseHeartRate decodes a Heart Rate Measurement notification.
// See: https://www.bluetooth.com/specifications/specs/heart-rate-service-1-0/
//
// An empty payload reads as 0 bpm.
func ParseHeartRate(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	flags := buf[0]
	// Bit 0: 0 = UINT8, 1 = UINT16
	if flags&0x01 != 0 {
		if len(buf) < 3 {
			return 0, fmt.Errorf("heart rate UINT16 data too short: %d bytes", len(buf))
		}
		return int(uint16(buf[1]) | uint16(buf[2])<<8), nil
	}
	if len(buf) < 2 {
		return 0, fmt.Errorf("heart rate data too short: %d bytes", len(buf))
	}
	return int(buf[1]), nil
}

// EncodeHeartRate builds a measurement payload, using the 16-bit form only
// when bpm does not fit in a byte.
func EncodeHeartRate(bpm int) []byte {
	if bpm > 0xff {
		return []byte{0x01, byte(bpm), byte(bpm >> 8)}
	}
	return []byte{0x00, byte(bpm)}
}
