package server

import (
	"encoding/json"
	"runtime"

	fiber "github.com/gofiber/fiber/v3"

	"github.com/ldiy/Kwartiwi-P1-firmware/pkg/predictor"
)

func writeJSON(c fiber.Ctx, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "encode failure")
	}
	c.Set("Content-Type", "application/json; charset=utf-8")
	return c.Send(b)
}

func (s *Server) handleVersion(c fiber.Ctx) error {
	return writeJSON(c, struct {
		Version string `json:"version"`
	}{Version: APIVersion})
}

func (s *Server) handleSystemInfo(c fiber.Ctx) error {
	return writeJSON(c, struct {
		Version string `json:"version"`
		Cores   int    `json:"cores"`
	}{Version: s.firmwareVersion, Cores: runtime.NumCPU()})
}

func (s *Server) handleBasic(c fiber.Ctx) error {
	ctx, cancel := s.lockCtx(c)
	defer cancel()
	basic, ok := s.store.BasicSnapshot(ctx)
	if !ok {
		return errLockTimeout
	}
	return writeJSON(c, basicToDTO(basic))
}

func (s *Server) handleComplete(c fiber.Ctx) error {
	ctx, cancel := s.lockCtx(c)
	defer cancel()
	snap, ok := s.store.Snapshot(ctx)
	if !ok {
		return errLockTimeout
	}
	return writeJSON(c, completeToDTO(snap))
}

// handleMeterData implements get_meter_data (spec §4.5): basic snapshot +
// maxDemandMonth + the predictor's current {predictedPeak,
// predictedPeakTime}, taking the snapshot lock and then the predictor lock
// in that order.
func (s *Server) handleMeterData(c fiber.Ctx) error {
	ctx, cancel := s.lockCtx(c)
	defer cancel()

	basic, ok := s.store.BasicSnapshot(ctx)
	if !ok {
		return errLockTimeout
	}
	month, ok := s.store.MaxDemandMonth(ctx)
	if !ok {
		return errLockTimeout
	}
	peak, ok := s.store.Peak(ctx)
	if !ok {
		return errLockTimeout
	}

	return writeJSON(c, meterDataDTO{
		basicDTO:          basicToDTO(basic),
		MaxDemandMonth:    maxDemandEntryToDTO(month),
		PredictedPeak:     peak.Value,
		PredictedPeakTime: epochSeconds(peak.EndOfQuarter),
	})
}

// handleMeterDataHistory implements get_meter_data_history (spec §4.5):
// shortTermHistory starts at the alignment index of spec §4.4 step 3, not
// at the head of the short-term ring.
func (s *Server) handleMeterDataHistory(c fiber.Ctx) error {
	ctx, cancel := s.lockCtx(c)
	defer cancel()

	year, ok := s.store.MaxDemandYear(ctx)
	if !ok {
		return errLockTimeout
	}
	short, ok := s.store.ShortTermHistory(ctx)
	if !ok {
		return errLockTimeout
	}
	long, ok := s.store.LongTermHistory(ctx)
	if !ok {
		return errLockTimeout
	}

	if len(short) > 0 {
		short = short[predictor.AlignmentIndex(short):]
	}

	yearDTOs := make([]maxDemandEntryDTO, 0, len(year))
	for _, e := range year {
		yearDTOs = append(yearDTOs, maxDemandEntryToDTO(e))
	}
	shortDTOs := make([]shortTermEntryDTO, 0, len(short))
	for _, e := range short {
		shortDTOs = append(shortDTOs, shortTermEntryDTO{
			Timestamp:         epochSeconds(e.Timestamp),
			CurrentAvgDemand:  e.CurrentAvgDemand,
			CurrentPowerUsage: e.CurrentPowerUsage,
		})
	}
	longDTOs := make([]longTermEntryDTO, 0, len(long))
	for _, e := range long {
		longDTOs = append(longDTOs, longTermEntryDTO{
			Timestamp:        epochSeconds(e.Timestamp),
			DeliveredTariff1: e.DeliveredT1,
			DeliveredTariff2: e.DeliveredT2,
			ReturnedTariff1:  e.ReturnedT1,
			ReturnedTariff2:  e.ReturnedT2,
		})
	}

	return writeJSON(c, meterDataHistoryDTO{
		MaxDemandYear:    yearDTOs,
		ShortTermHistory: shortDTOs,
		LongTermHistory:  longDTOs,
	})
}
