// Package p1 validates and parses a single DSMR-5.0 P1 telegram, as framed
// by pkg/frame, into a telegram.Snapshot (spec §4.2).
package p1

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/howeyc/crc16"

	"github.com/ldiy/Kwartiwi-P1-firmware/pkg/log"
	"github.com/ldiy/Kwartiwi-P1-firmware/pkg/telegram"
)

// ErrCRCMismatch is returned when a telegram's trailing CRC16 does not match
// the computed checksum of its body. The caller must not commit a snapshot
// for a frame that returns this error.
var ErrCRCMismatch = errors.New("p1: CRC mismatch")

// ErrFrameTooShort is returned for a frame too small to contain a CRC
// trailer.
var ErrFrameTooShort = errors.New("p1: frame too short")

// crcTable implements CRC16 polynomial 0xA001 (reflected 0x8005, i.e.
// CRC-16/ARC), initial value 0, no final XOR — per spec §4.2.
var crcTable = crc16.MakeTableNoXOR(crc16.IBM)

// Parse validates frame's CRC and, on success, extracts its OBIS-coded
// fields into a fresh telegram.Snapshot. frame is the exact slice yielded by
// a frame.Assembler: it starts with '/', its trailing '\n' has been
// replaced with a NUL byte, and its last six bytes are the four-hex-digit
// CRC, '\r' and that NUL.
func Parse(frame []byte) (telegram.Snapshot, error) {
	var snap telegram.Snapshot

	if len(frame) < 6 {
		return snap, ErrFrameTooShort
	}
	bodyLen := len(frame) - 6
	body := frame[:bodyLen]
	wantCRC := string(frame[bodyLen : bodyLen+4])

	got := crc16.Checksum(body, crcTable)
	gotCRC := fmt.Sprintf("%04X", got)
	if gotCRC != wantCRC {
		return snap, ErrCRCMismatch
	}

	// The last byte is a NUL standing in for the frame's trailing '\n';
	// strip it so splitting on "\r\n" doesn't leave a stray "\r\x00" line.
	text := string(frame[:len(frame)-1])
	for _, line := range strings.Split(text, "\r\n") {
		parseLine(&snap, line)
	}
	return snap, nil
}

func parseLine(snap *telegram.Snapshot, line string) {
	idx := strings.IndexByte(line, '(')
	if idx < 0 {
		return
	}
	obis := line[:idx]
	groups := splitGroups(line[idx:])
	if len(groups) == 0 {
		return
	}

	switch obis {
	case "0-0:96.1.4":
		snap.VersionInfo = groups[0]
	case "0-0:96.1.1":
		snap.EquipmentID = groups[0]
	case "0-0:1.0.0":
		snap.MsgTimestamp = parseTimestamp(obis, groups[0])
	case "1-0:1.8.1":
		snap.ElectricityDeliveredTariff1 = parseFloatUnit(obis, groups[0])
	case "1-0:1.8.2":
		snap.ElectricityDeliveredTariff2 = parseFloatUnit(obis, groups[0])
	case "1-0:2.8.1":
		snap.ElectricityReturnedTariff1 = parseFloatUnit(obis, groups[0])
	case "1-0:2.8.2":
		snap.ElectricityReturnedTariff2 = parseFloatUnit(obis, groups[0])
	case "0-0:96.14.0":
		snap.TariffIndicator = uint8(parseUint(obis, groups[0]))
	case "1-0:1.4.0":
		snap.CurrentAvgDemand = parseFloatUnit(obis, groups[0])
	case "1-0:1.6.0":
		if len(groups) >= 2 {
			snap.MaxDemandMonth = telegram.MaxDemandEntry{
				Timestamp: parseTimestamp(obis, groups[0]),
				Demand:    parseFloatUnit(obis, groups[1]),
			}
		}
	case "0-0:98.1.0":
		parseMaxDemandYear(snap, obis, groups)
	case "1-0:1.7.0":
		snap.CurrentPowerUsage = parseFloatUnit(obis, groups[0])
	case "1-0:2.7.0":
		snap.CurrentPowerReturn = parseFloatUnit(obis, groups[0])
	case "1-0:21.7.0":
		snap.CurrentPowerUsageL1 = parseFloatUnit(obis, groups[0])
	case "1-0:41.7.0":
		snap.CurrentPowerUsageL2 = parseFloatUnit(obis, groups[0])
	case "1-0:61.7.0":
		snap.CurrentPowerUsageL3 = parseFloatUnit(obis, groups[0])
	case "1-0:22.7.0":
		snap.CurrentPowerReturnL1 = parseFloatUnit(obis, groups[0])
	case "1-0:42.7.0":
		snap.CurrentPowerReturnL2 = parseFloatUnit(obis, groups[0])
	case "1-0:62.7.0":
		snap.CurrentPowerReturnL3 = parseFloatUnit(obis, groups[0])
	case "1-0:32.7.0":
		snap.VoltageL1 = parseFloatUnit(obis, groups[0])
	case "1-0:52.7.0":
		snap.VoltageL2 = parseFloatUnit(obis, groups[0])
	case "1-0:72.7.0":
		snap.VoltageL3 = parseFloatUnit(obis, groups[0])
	case "1-0:31.7.0":
		snap.CurrentL1 = parseFloatUnit(obis, groups[0])
	case "1-0:51.7.0":
		snap.CurrentL2 = parseFloatUnit(obis, groups[0])
	case "1-0:71.7.0":
		snap.CurrentL3 = parseFloatUnit(obis, groups[0])
	case "0-0:96.3.10":
		snap.BreakerState = telegram.BreakerState(parseUint(obis, groups[0]))
	case "0-0:17.0.0":
		snap.LimiterThreshold = parseFloatUnit(obis, groups[0])
	case "1-0:31.4.0":
		snap.FuseSupervisionThreshold = parseFloatUnit(obis, groups[0])
	case "0-0:96.13.1":
		// Text message: recognized but discarded, per spec §4.2.
	default:
		// Unknown OBIS code: silently ignored, per spec §4.2.
	}
}

// parseMaxDemandYear implements the 0-0:98.1.0 extractor from spec §4.2: the
// first group is the entry count N, the next two groups are header
// metadata, and each of the N entries is four groups (two skipped, a
// timestamp, then a value) wide.
func parseMaxDemandYear(snap *telegram.Snapshot, obis string, groups []string) {
	n64, err := strconv.ParseUint(groups[0], 10, 32)
	if err != nil {
		log.Logger.Warn().Str("obis", obis).Str("value", groups[0]).Msg("bad max-demand-year count")
		return
	}
	n := int(n64)
	if n > telegram.MaxDemandYearCap {
		n = telegram.MaxDemandYearCap
	}

	// groups[0] = count, groups[1:3] = header, then 4 groups per entry.
	pos := 3
	count := 0
	for i := 0; i < n; i++ {
		if pos+3 >= len(groups) {
			break
		}
		ts := parseTimestamp(obis, groups[pos+2])
		if ts.IsZero() {
			// Zero-timestamp sentinel: the wire format's early-termination
			// convention, per spec §3 and the open question in §9.
			break
		}
		snap.MaxDemandYear[count] = telegram.MaxDemandEntry{
			Timestamp: ts,
			Demand:    parseFloatUnit(obis, groups[pos+3]),
		}
		count++
		pos += 4
	}
	snap.MaxDemandYearCount = count
}

// splitGroups returns the contents of each top-level "(...)" group in s, in
// order. OBIS telegram values never nest parentheses.
func splitGroups(s string) []string {
	var groups []string
	for {
		start := strings.IndexByte(s, '(')
		if start < 0 {
			break
		}
		end := strings.IndexByte(s[start:], ')')
		if end < 0 {
			break
		}
		groups = append(groups, s[start+1:start+end])
		s = s[start+end+1:]
	}
	return groups
}

// parseFloatUnit parses the leading float of a "value*unit" group, e.g.
// "000011.111*kWh" -> 11.111. Parse failures log a local warning and yield
// the zero value, per spec §7 (field parse errors never abort parsing).
func parseFloatUnit(obis, group string) float64 {
	numPart := group
	if i := strings.IndexByte(group, '*'); i >= 0 {
		numPart = group[:i]
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(numPart), 64)
	if err != nil {
		log.Logger.Warn().Str("obis", obis).Str("value", group).Msg("bad float field")
		return 0
	}
	return v
}

func parseUint(obis, group string) uint64 {
	v, err := strconv.ParseUint(strings.TrimSpace(group), 10, 32)
	if err != nil {
		log.Logger.Warn().Str("obis", obis).Str("value", group).Msg("bad integer field")
		return 0
	}
	return v
}

// dsmrTimestampLayout is DSMR's YYMMDDhhmmss wire format, with the year
// taken as 2000+YY.
const dsmrTimestampLayout = "060102150405"

// parseTimestamp parses a DSMR timestamp group, tolerating but ignoring the
// optional trailing DST indicator byte ('S' or 'W'), per spec §4.2: the
// conversion goes through the host's local time zone rather than selecting
// a zone from the suffix.
func parseTimestamp(obis, group string) time.Time {
	s := strings.TrimSpace(group)
	if len(s) == len(dsmrTimestampLayout)+1 {
		switch s[len(s)-1] {
		case 'S', 'W':
			s = s[:len(s)-1]
		}
	}
	t, err := time.ParseInLocation(dsmrTimestampLayout, s, time.Local)
	if err != nil {
		log.Logger.Warn().Str("obis", obis).Str("value", group).Msg("bad timestamp field")
		return time.Time{}
	}
	return t
}
