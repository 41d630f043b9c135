package handlers

import (
	"time"

	"hcasc.cz/dagmar/utils"
)

func parseDayInput(dto AttendanceDayDTO) (time.Time, *string, *string, error) {
	date, err := utils.ParseDate(dto.Date)
	if err != nil {
		return time.Time{}, nil, nil, err
	}
	arrival, err := normalizeOptional(dto.ArrivalTime)
	if err != nil {
		return time.Time{}, nil, nil, err
	}
	departure, err := normalizeOptional(dto.DepartureTime)
	if err != nil {
		return time.Time{}, nil, nil, err
	}
	return date, arrival, departure, nil
}

func normalizeOptional(value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	return utils.NormalizeHHMM(*value)
}
