package service

import "time"

// clock abstracts time.Now so expiry and backoff logic is testable.
type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
