package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for matching with errors.Is.
var (
	ErrDataShape   = errors.New("unexpected provider data shape")
	ErrEmptyWindow = errors.New("empty aggregation window")
	ErrNoData      = errors.New("no data available")
)

// DataShapeError reports a provider payload missing a required field.
type DataShapeError struct {
	Station string
	Series  string
	Field   string // station, timeseries, series, values or timestamp
	Detail  string
}

func (e *DataShapeError) Error() string {
	msg := fmt.Sprintf("%s: missing %s for station %q", ErrDataShape, e.Field, e.Station)
	if e.Series != "" {
		msg += fmt.Sprintf(" series %q", e.Series)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *DataShapeError) Unwrap() error { return ErrDataShape }

// EmptyWindowError reports an aggregation attempted over zero inputs.
type EmptyWindowError struct {
	Window string
}

func (e *EmptyWindowError) Error() string {
	return fmt.Sprintf("%s: %s", ErrEmptyWindow, e.Window)
}

func (e *EmptyWindowError) Unwrap() error { return ErrEmptyWindow }

// NoDataError reports a trend or condition requested without any samples.
type NoDataError struct {
	Station string
	Series  string
}

func (e *NoDataError) Error() string {
	if e.Series == "" {
		return ErrNoData.Error()
	}
	return fmt.Sprintf("%s for %s series %q", ErrNoData, e.Station, e.Series)
}

func (e *NoDataError) Unwrap() error { return ErrNoData }
