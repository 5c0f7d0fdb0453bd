package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testBand() Band {
	return Band{
		ID:   1,
		Name: "The Offbeats",
		Members: []BandMember{
			{UserID: 10, Role: BandRoleLeader, Instrument: "guitar"},
			{UserID: 20, Role: BandRoleMember, Instrument: "drums"},
		},
	}
}

func TestIsMember(t *testing.T) {
	b := testBand()

	require.True(t, IsMember(b, 10))
	require.True(t, IsMember(b, 20))
	require.False(t, IsMember(b, 30))
}

func TestIsLeader(t *testing.T) {
	b := testBand()

	require.True(t, IsLeader(b, 10))
	require.False(t, IsLeader(b, 20))
	require.False(t, IsLeader(b, 30))
}

func TestMember(t *testing.T) {
	b := testBand()

	m, ok := Member(b, 20)
	require.True(t, ok)
	require.Equal(t, "drums", m.Instrument)

	_, ok = Member(b, 30)
	require.False(t, ok)
}

func TestRehearsalDuration(t *testing.T) {
	start := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)

	r := Rehearsal{StartTime: start, EndTime: start.Add(2 * time.Hour)}

	require.Equal(t, 2*time.Hour, RehearsalDuration(r))
}

func TestIsUpcoming(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	future := Rehearsal{StartTime: now.Add(time.Hour), Status: RehearsalScheduled}
	past := Rehearsal{StartTime: now.Add(-time.Hour), Status: RehearsalScheduled}
	canceled := Rehearsal{StartTime: now.Add(time.Hour), Status: RehearsalCanceled}

	require.True(t, IsUpcoming(future, now))
	require.False(t, IsUpcoming(past, now))
	require.False(t, IsUpcoming(canceled, now))
}

func TestCanModify(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.True(t, CanModify(Rehearsal{StartTime: now.Add(time.Hour), Status: RehearsalScheduled}, now))
	require.True(t, CanModify(Rehearsal{StartTime: now.Add(time.Hour), Status: RehearsalRescheduled}, now))
	require.False(t, CanModify(Rehearsal{StartTime: now.Add(time.Hour), Status: RehearsalCompleted}, now))
	require.False(t, CanModify(Rehearsal{StartTime: now.Add(-time.Hour), Status: RehearsalScheduled}, now))
}

func TestOverlaps(t *testing.T) {
	base := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)

	a := Rehearsal{StartTime: base, EndTime: base.Add(2 * time.Hour)}
	b := Rehearsal{StartTime: base.Add(time.Hour), EndTime: base.Add(3 * time.Hour)}
	c := Rehearsal{StartTime: base.Add(2 * time.Hour), EndTime: base.Add(4 * time.Hour)}

	require.True(t, Overlaps(a, b))
	require.True(t, Overlaps(b, a))
	require.False(t, Overlaps(a, c))
}

func TestPublicProjection(t *testing.T) {
	expires := time.Now().Add(time.Minute)

	u := User{
		ID:             7,
		Email:          "a@b.com",
		Name:           "Ann",
		Role:           RoleMember,
		PassHash:       []byte("$2a$10$hash"),
		ResetTokenHash: "deadbeef",
		ResetExpiresAt: &expires,
	}

	pub := u.Public()

	require.Equal(t, int64(7), pub.ID)
	require.Equal(t, "a@b.com", pub.Email)
	// the projection has no secret-bearing fields at all; nothing further
	// to assert beyond the type shape
}
