package server

import (
	"time"

	"github.com/ldiy/Kwartiwi-P1-firmware/pkg/telegram"
)

// epochSeconds renders t as a seconds-since-epoch float, per spec §6:
// "timestamps are serialized as seconds-since-epoch doubles."
func epochSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / 1e9
}

type maxDemandEntryDTO struct {
	Timestamp float64 `json:"timestamp"`
	Demand    float64 `json:"demand"`
}

func maxDemandEntryToDTO(e telegram.MaxDemandEntry) maxDemandEntryDTO {
	return maxDemandEntryDTO{Timestamp: epochSeconds(e.Timestamp), Demand: e.Demand}
}

type basicDTO struct {
	Timestamp                   float64 `json:"timestamp"`
	ElectricityDeliveredTariff1 float64 `json:"electricityDeliveredTariff1"`
	ElectricityDeliveredTariff2 float64 `json:"electricityDeliveredTariff2"`
	ElectricityReturnedTariff1  float64 `json:"electricityReturnedTariff1"`
	ElectricityReturnedTariff2  float64 `json:"electricityReturnedTariff2"`
	CurrentAvgDemand            float64 `json:"currentAvgDemand"`
	CurrentPowerUsage           float64 `json:"currentPowerUsage"`
	CurrentPowerReturn          float64 `json:"currentPowerReturn"`
}

func basicToDTO(b telegram.BasicSnapshot) basicDTO {
	return basicDTO{
		Timestamp:                   epochSeconds(b.MsgTimestamp),
		ElectricityDeliveredTariff1: b.ElectricityDeliveredTariff1,
		ElectricityDeliveredTariff2: b.ElectricityDeliveredTariff2,
		ElectricityReturnedTariff1:  b.ElectricityReturnedTariff1,
		ElectricityReturnedTariff2:  b.ElectricityReturnedTariff2,
		CurrentAvgDemand:            b.CurrentAvgDemand,
		CurrentPowerUsage:           b.CurrentPowerUsage,
		CurrentPowerReturn:          b.CurrentPowerReturn,
	}
}

type completeDTO struct {
	basicDTO

	VersionInfo     string `json:"versionInfo"`
	EquipmentID     string `json:"equipmentId"`
	TariffIndicator uint8  `json:"tariffIndicator"`

	MaxDemandMonth maxDemandEntryDTO   `json:"maxDemandMonth"`
	MaxDemandYear  []maxDemandEntryDTO `json:"maxDemandYear"`

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

	BreakerState uint8 `json:"breakerState"`

	LimiterThreshold         float64 `json:"limiterThreshold"`
	FuseSupervisionThreshold float64 `json:"fuseSupervisionThreshold"`
}

func completeToDTO(s telegram.Snapshot) completeDTO {
	year := make([]maxDemandEntryDTO, 0, len(s.MaxDemandYearEntries()))
	for _, e := range s.MaxDemandYearEntries() {
		year = append(year, maxDemandEntryToDTO(e))
	}
	return completeDTO{
		basicDTO:        basicToDTO(s.Basic()),
		VersionInfo:     s.VersionInfo,
		EquipmentID:     s.EquipmentID,
		TariffIndicator: s.TariffIndicator,
		MaxDemandMonth:  maxDemandEntryToDTO(s.MaxDemandMonth),
		MaxDemandYear:   year,

		CurrentPowerUsageL1:  s.CurrentPowerUsageL1,
		CurrentPowerUsageL2:  s.CurrentPowerUsageL2,
		CurrentPowerUsageL3:  s.CurrentPowerUsageL3,
		CurrentPowerReturnL1: s.CurrentPowerReturnL1,
		CurrentPowerReturnL2: s.CurrentPowerReturnL2,
		CurrentPowerReturnL3: s.CurrentPowerReturnL3,

		VoltageL1: s.VoltageL1,
		VoltageL2: s.VoltageL2,
		VoltageL3: s.VoltageL3,
		CurrentL1: s.CurrentL1,
		CurrentL2: s.CurrentL2,
		CurrentL3: s.CurrentL3,

		BreakerState: uint8(s.BreakerState),

		LimiterThreshold:         s.LimiterThreshold,
		FuseSupervisionThreshold: s.FuseSupervisionThreshold,
	}
}

type meterDataDTO struct {
	basicDTO
	MaxDemandMonth    maxDemandEntryDTO `json:"maxDemandMonth"`
	PredictedPeak     float64           `json:"predictedPeak"`
	PredictedPeakTime float64           `json:"predictedPeakTime"`
}

type shortTermEntryDTO struct {
	Timestamp         float64 `json:"timestamp"`
	CurrentAvgDemand  float64 `json:"currentAvgDemand"`
	CurrentPowerUsage float64 `json:"currentPowerUsage"`
}

type longTermEntryDTO struct {
	Timestamp        float64 `json:"timestamp"`
	DeliveredTariff1 int64   `json:"deliveredTariff1"`
	DeliveredTariff2 int64   `json:"deliveredTariff2"`
	ReturnedTariff1  int64   `json:"returnedTariff1"`
	ReturnedTariff2  int64   `json:"returnedTariff2"`
}

type meterDataHistoryDTO struct {
	MaxDemandYear    []maxDemandEntryDTO `json:"maxDemandYear"`
	ShortTermHistory []shortTermEntryDTO `json:"shortTermHistory"`
	LongTermHistory  []longTermEntryDTO  `json:"longTermHistory"`
}
