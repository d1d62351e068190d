package gcp

import "encoding/binary"

// HardwareInfo is the HELLO response record (§3), 8 bytes on the wire.
type HardwareInfo struct {
	ManufactureDate uint16
	SerialNumber    uint16
	BoardType       uint8
	HWRevision      uint8
	ChipModel       uint8
	Features        uint8
}

const hardwareInfoSize = 8

func parseHardwareInfo(b []byte) (HardwareInfo, error) {
	if len(b) < hardwareInfoSize {
		return HardwareInfo{}, errInvalidResponse("hardware info payload too short")
	}
	return HardwareInfo{
		ManufactureDate: binary.LittleEndian.Uint16(b[0:2]),
		SerialNumber:    binary.LittleEndian.Uint16(b[2:4]),
		BoardType:       b[4],
		HWRevision:      b[5],
		ChipModel:       b[6],
		Features:        b[7],
	}, nil
}

// RTCTime is the device real-time clock snapshot embedded in StatusData.
type RTCTime struct {
	Year       uint8
	Month      uint8
	Day        uint8
	Hour       uint8
	Minute     uint8
	Second     uint8
	Weekday    uint8
	Hundredths uint8
}

// StatusData is the GET_STATUS response record (§3), 15 bytes on the wire.
type StatusData struct {
	BatteryLevel   uint8 // 0-100
	SystemState    uint8
	LEDColor       uint16
	LEDBrightness  uint8
	CurrentGameIdx uint16
	RTC            RTCTime
}

const statusDataSize = 15

func parseStatusData(b []byte) (StatusData, error) {
	if len(b) < statusDataSize {
		return StatusData{}, errInvalidResponse("status payload too short")
	}
	return StatusData{
		BatteryLevel:   b[0],
		SystemState:    b[1],
		LEDColor:       binary.LittleEndian.Uint16(b[2:4]),
		LEDBrightness:  b[4],
		CurrentGameIdx: binary.LittleEndian.Uint16(b[5:7]),
		RTC: RTCTime{
			Year:       b[7],
			Month:      b[8],
			Day:        b[9],
			Hour:       b[10],
			Minute:     b[11],
			Second:     b[12],
			Weekday:    b[13],
			Hundredths: b[14],
		},
	}, nil
}

// FwVersion is the GET_FW_VER response record (§3), 6 bytes on the wire.
type FwVersion struct {
	Major  uint8
	Minor  uint8
	Patch  uint8
	Suffix [3]byte
}

const fwVersionSize = 6

// String renders "major.minor.patch" followed by the ASCII suffix, trimmed
// of trailing NUL padding, e.g. "2.4.0rc1" or "2.4.0".
func (v FwVersion) String() string {
	s := string(v.Suffix[:])
	end := len(s)
	for end > 0 && s[end-1] == 0 {
		end--
	}
	base := itoaVersion(v.Major) + "." + itoaVersion(v.Minor) + "." + itoaVersion(v.Patch)
	if end == 0 {
		return base
	}
	return base + s[:end]
}

func itoaVersion(b uint8) string {
	if b == 0 {
		return "0"
	}
	var buf [3]byte
	i := len(buf)
	for b > 0 {
		i--
		buf[i] = byte('0' + b%10)
		b /= 10
	}
	return string(buf[i:])
}

func parseFwVersion(b []byte) (FwVersion, error) {
	if len(b) < fwVersionSize {
		return FwVersion{}, errInvalidResponse("firmware version payload too short")
	}
	var v FwVersion
	v.Major = b[0]
	v.Minor = b[1]
	v.Patch = b[2]
	copy(v.Suffix[:], b[3:6])
	return v, nil
}
