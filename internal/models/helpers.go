package models

import "time"

// Membership and schedule checks live here as plain functions over the
// records rather than as storage-attached behavior.

func IsMember(b Band, userID int64) bool {
	for _, m := range b.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func IsLeader(b Band, userID int64) bool {
	for _, m := range b.Members {
		if m.UserID == userID && m.Role == BandRoleLeader {
			return true
		}
	}
	return false
}

func Member(b Band, userID int64) (BandMember, bool) {
	for _, m := range b.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return BandMember{}, false
}

func RehearsalDuration(r Rehearsal) time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

func IsUpcoming(r Rehearsal, now time.Time) bool {
	return r.StartTime.After(now) && r.Status != RehearsalCanceled
}

func CanModify(r Rehearsal, now time.Time) bool {
	if !r.StartTime.After(now) {
		return false
	}
	return r.Status == RehearsalScheduled || r.Status == RehearsalRescheduled
}

func Overlaps(a, b Rehearsal) bool {
	return a.StartTime.Before(b.EndTime) && b.StartTime.Before(a.EndTime)
}
