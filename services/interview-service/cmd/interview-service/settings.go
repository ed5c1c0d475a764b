package main

import (
	"fmt"
	"time"

	"github.com/adoptly/adoptly/libs/config"
	"github.com/adoptly/adoptly/services/interview-service/internal/civiltime"
)

type schedulingConfig struct {
	location     *time.Location
	step         int
	displayStart civiltime.TimeOfDay
	displayEnd   civiltime.TimeOfDay
}

func loadSchedulingConfig() (schedulingConfig, error) {
	loc, err := config.Location("TIMEZONE", "+07:00")
	if err != nil {
		return schedulingConfig{}, err
	}
	step, err := config.Int("INTERVIEW_SLOT_STEP_MINUTES", 30, 5, 120)
	if err != nil {
		return schedulingConfig{}, err
	}
	start, err := civiltime.ParseTimeOfDay(config.String("INTERVIEW_DISPLAY_START", "07:00"))
	if err != nil {
		return schedulingConfig{}, fmt.Errorf("INTERVIEW_DISPLAY_START: %w", err)
	}
	end, err := civiltime.ParseTimeOfDay(config.String("INTERVIEW_DISPLAY_END", "22:00"))
	if err != nil {
		return schedulingConfig{}, fmt.Errorf("INTERVIEW_DISPLAY_END: %w", err)
	}
	if end < start {
		return schedulingConfig{}, fmt.Errorf("INTERVIEW_DISPLAY_END %s is before INTERVIEW_DISPLAY_START %s", end, start)
	}
	return schedulingConfig{location: loc, step: step, displayStart: start, displayEnd: end}, nil
}
