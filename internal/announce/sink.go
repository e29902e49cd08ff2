package announce

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Origin string

const (
	OriginPoll   Origin = "poll"
	OriginManual Origin = "manual"
	OriginCall   Origin = "call"
	OriginQueue  Origin = "queue"
	OriginPreset Origin = "preset"
	OriginTest   Origin = "test"
)

// Announcement is what the display sink receives.
type Announcement struct {
	Message     string    `json:"message"`
	Origin      Origin    `json:"origin"`
	PatientName string    `json:"patient_name,omitempty"`
	PatientID   uuid.UUID `json:"patient_id"`
	VisitID     uuid.UUID `json:"visit_id"`
	At          time.Time `json:"at"`
}

type Display interface {
	Show(a Announcement) error
}

// DisplayFunc adapts a plain function to Display.
type DisplayFunc func(a Announcement) error

func (f DisplayFunc) Show(a Announcement) error { return f(a) }

// LogDisplay writes each announcement as a structured log line.
func LogDisplay(log zerolog.Logger) Display {
	return DisplayFunc(func(a Announcement) error {
		ev := log.Info().
			Str("origin", string(a.Origin)).
			Time("at", a.At)
		if a.PatientName != "" {
			ev = ev.Str("patient", a.PatientName)
		}
		ev.Msg(a.Message)
		return nil
	})
}

// MultiDisplay fans an announcement out to every display. A failing display does not stop the rest.
func MultiDisplay(displays ...Display) Display {
	return DisplayFunc(func(a Announcement) error {
		var errs []error
		for _, d := range displays {
			if d == nil {
				continue
			}
			if err := showSafely(d, a); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

func showSafely(d Display, a Announcement) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("display panicked: %v", r)
		}
	}()
	return d.Show(a)
}
