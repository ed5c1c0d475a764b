// Package schedule turns an interview availability window and the current time into
// calendar and time-of-day bounds, the schedule state, and a single validated commit.
package schedule

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

var ErrInvertedWindow = errors.New("availability window starts after it ends")

// Window is the interval an adopter may pick an interview instant from. Both ends
// are inclusive.
type Window struct {
	Start  time.Time
	End    time.Time
	Method string
}

func NewWindow(start, end time.Time, method string) (Window, error) {
	if start.After(end) {
		return Window{}, ErrInvertedWindow
	}
	return Window{Start: start, End: end, Method: strings.TrimSpace(method)}, nil
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// MethodIsLink reports whether Method is an absolute http(s) URL (a video-call link)
// rather than free text such as an address.
func (w Window) MethodIsLink() bool {
	u, err := url.Parse(w.Method)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
