package auth

import "time"

func SetClock(a *Authenticator, now func() time.Time) {
	a.now = now
}
