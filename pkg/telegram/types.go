// Package telegram holds the value types that make up a parsed DSMR P1
// telegram snapshot and the derived records the rest of the core trades in.
package telegram

import "time"

// BreakerState mirrors the OBIS 0-0:96.3.10 enumeration.
type BreakerState uint8

const (
	BreakerDisconnected BreakerState = 0
	BreakerConnected    BreakerState = 1
	BreakerReady        BreakerState = 2
)

// MaxDemandEntry is one {timestamp, demand} pair from the max-demand-year
// history (OBIS 0-0:98.1.0) or the max-demand-month record (OBIS 1-0:1.6.0).
type MaxDemandEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Demand    float64   `json:"demand"`
}

// MaxDemandYearCap is the maximum number of entries the wire format carries
// in OBIS 0-0:98.1.0 (DSMR's 13-month sliding window).
const MaxDemandYearCap = 13

// Snapshot is the parsed current-state record described in spec §3. A
// Snapshot only ever becomes observable after a successful CRC check; the
// parser builds one on a scratch value and swaps it into the store as a
// whole, so partially-parsed snapshots are never visible to readers.
type Snapshot struct {
	VersionInfo  string    `json:"versionInfo"`
	EquipmentID  string    `json:"equipmentId"`
	MsgTimestamp time.Time `json:"timestamp"`

	ElectricityDeliveredTariff1 float64 `json:"electricityDeliveredTariff1"`
	ElectricityDeliveredTariff2 float64 `json:"electricityDeliveredTariff2"`
	ElectricityReturnedTariff1  float64 `json:"electricityReturnedTariff1"`
	ElectricityReturnedTariff2  float64 `json:"electricityReturnedTariff2"`

	// TariffIndicator is parsed as an unsigned integer off the wire (OBIS
	// 0-0:96.14.0 is defined as a 4-byte field) and stored truncated into 8
	// bits: preserve-truncate per the open question in spec §9.
	TariffIndicator uint8 `json:"tariffIndicator"`

	CurrentAvgDemand float64 `json:"currentAvgDemand"`

	MaxDemandMonth MaxDemandEntry `json:"maxDemandMonth"`

	// MaxDemandYear holds up to MaxDemandYearCap entries. MaxDemandYearCount
	// is the authoritative length; entries at index >= MaxDemandYearCount
	// are zero value. The wire format terminates the OBIS 0-0:98.1.0 group
	// early on a zero timestamp — that convention is resolved into this
	// explicit count at parse time so no consumer has to special-case a
	// zero timestamp itself.
	MaxDemandYear      [MaxDemandYearCap]MaxDemandEntry `json:"maxDemandYear"`
	MaxDemandYearCount int                              `json:"-"`

	CurrentPowerUsage  float64 `json:"currentPowerUsage"`
	CurrentPowerReturn float64 `json:"currentPowerReturn"`

	CurrentPowerUsageL1  float64 `json:"currentPowerUsageL1"`
	CurrentPowerUsageL2  float64 `json:"currentPowerUsageL2"`
	CurrentPowerUsageL3  float64 `json:"currentPowerUsageL3"`
	CurrentPowerReturnL1 float64 `json:"currentPowerReturnL1"`
	CurrentPowerReturnL2 float64 `json:"currentPowerReturnL2"`
	CurrentPowerReturnL3 float64 `json:"currentPowerReturnL3"`

	VoltageL1 float64 `json:"voltageL1"`
	VoltageL2 float64 `json:"voltageL2"`
	VoltageL3 float64 `json:"voltageL3"`
	CurrentL1 float64 `json:"currentL1"`
	CurrentL2 float64 `json:"currentL2"`
	CurrentL3 float64 `json:"currentL3"`

	BreakerState BreakerState `json:"breakerState"`

	LimiterThreshold         float64 `json:"limiterThreshold"`
	FuseSupervisionThreshold float64 `json:"fuseSupervisionThreshold"`
}

// MaxDemandYearEntries returns the populated prefix of MaxDemandYear, per
// the documented count, in the order the telegram listed the entries; the
// entries are not sorted by timestamp.
func (s *Snapshot) MaxDemandYearEntries() []MaxDemandEntry {
	return s.MaxDemandYear[:s.MaxDemandYearCount]
}

// BasicSnapshot is the reduced field set served by get_snapshot_basic (spec
// §4.5): timestamp, the four tariff counters, and the three instantaneous
// power fields.
type BasicSnapshot struct {
	MsgTimestamp                time.Time `json:"timestamp"`
	ElectricityDeliveredTariff1 float64   `json:"electricityDeliveredTariff1"`
	ElectricityDeliveredTariff2 float64   `json:"electricityDeliveredTariff2"`
	ElectricityReturnedTariff1  float64   `json:"electricityReturnedTariff1"`
	ElectricityReturnedTariff2  float64   `json:"electricityReturnedTariff2"`
	CurrentAvgDemand            float64   `json:"currentAvgDemand"`
	CurrentPowerUsage           float64   `json:"currentPowerUsage"`
	CurrentPowerReturn          float64   `json:"currentPowerReturn"`
}

// Basic projects s down to its BasicSnapshot view.
func (s *Snapshot) Basic() BasicSnapshot {
	return BasicSnapshot{
		MsgTimestamp:                s.MsgTimestamp,
		ElectricityDeliveredTariff1: s.ElectricityDeliveredTariff1,
		ElectricityDeliveredTariff2: s.ElectricityDeliveredTariff2,
		ElectricityReturnedTariff1:  s.ElectricityReturnedTariff1,
		ElectricityReturnedTariff2:  s.ElectricityReturnedTariff2,
		CurrentAvgDemand:            s.CurrentAvgDemand,
		CurrentPowerUsage:           s.CurrentPowerUsage,
		CurrentPowerReturn:          s.CurrentPowerReturn,
	}
}

// ShortTermEntry is one sample in the short-term ring (spec §3).
type ShortTermEntry struct {
	Timestamp        time.Time `json:"timestamp"`
	CurrentAvgDemand float64   `json:"currentAvgDemand"`
	CurrentPowerUsage float64  `json:"currentPowerUsage"`
}

// LongTermEntry is one quarter-hour-bucketed sample in the long-term ring
// (spec §3). kWh readings are scaled x1000 and truncated to integers, as
// the wire-matching resolution the original firmware stores.
type LongTermEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	DeliveredT1 int64     `json:"deliveredTariff1"`
	DeliveredT2 int64     `json:"deliveredTariff2"`
	ReturnedT1  int64     `json:"returnedTariff1"`
	ReturnedT2  int64     `json:"returnedTariff2"`
}

// Peak is the predicted-peak record (spec §3). It is always replaced as a
// whole so a reader never observes a torn {value, timestamp} pair.
type Peak struct {
	Value        float64   `json:"predictedPeak"`
	EndOfQuarter time.Time `json:"predictedPeakTime"`
}

// QuarterBucket returns the 900-second bucket key for t, per the glossary's
// quarter-hour bucket definition.
func QuarterBucket(t time.Time) int64 {
	return t.Unix() / 900
}
