package booking

import "fmt"

// ClassSession is one bookable class session as returned by the remote
// source. The booking id is unique per site/date query response.
type ClassSession struct {
	BookingID  int64
	Time       string
	Name       string
	Instructor string // may be empty
	Spaces     int    // remaining seats, never negative
}

// Label renders the short "time - name (instructor)" form used in
// button labels and class summaries.
func (s ClassSession) Label() string {
	if s.Instructor == "" {
		return fmt.Sprintf("%s - %s", s.Time, s.Name)
	}
	return fmt.Sprintf("%s - %s (%s)", s.Time, s.Name, s.Instructor)
}
