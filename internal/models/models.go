package models

import "time"

type Role string

const (
	RoleMember Role = "member"
	RoleLeader Role = "leader"
	RoleAdmin  Role = "admin"
)

type User struct {
	ID             int64
	Email          string
	Name           string
	Phone          string
	Role           Role
	ProfilePicture string
	Preferences    Preferences
	PassHash       []byte
	ResetTokenHash string
	ResetExpiresAt *time.Time
	CreatedAt      time.Time
}

type Preferences struct {
	Timezone           string `json:"timezone"`
	CalendarView       string `json:"calendar_view"`
	Theme              string `json:"theme"`
	EmailNotifications bool   `json:"email_notifications"`
	PushNotifications  bool   `json:"push_notifications"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		Timezone:           "UTC",
		CalendarView:       "week",
		Theme:              "system",
		EmailNotifications: true,
		PushNotifications:  true,
	}
}

// PublicUser is the projection allowed to leave the service:
// no password hash, no reset token fields.
type PublicUser struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	Email          string      `json:"email"`
	Phone          string      `json:"phone,omitempty"`
	Role           Role        `json:"role"`
	ProfilePicture string      `json:"profile_picture,omitempty"`
	Preferences    Preferences `json:"preferences"`
	CreatedAt      time.Time   `json:"created_at"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Phone:          u.Phone,
		Role:           u.Role,
		ProfilePicture: u.ProfilePicture,
		Preferences:    u.Preferences,
		CreatedAt:      u.CreatedAt,
	}
}

type BandRole string

const (
	BandRoleLeader  BandRole = "leader"
	BandRoleMember  BandRole = "member"
	BandRoleManager BandRole = "manager"
)

type BandMember struct {
	UserID     int64     `json:"user_id"`
	Role       BandRole  `json:"role"`
	Instrument string    `json:"instrument,omitempty"`
	JoinedAt   time.Time `json:"joined_at"`
}

type Band struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Genre       string       `json:"genre,omitempty"`
	Location    string       `json:"location,omitempty"`
	CreatedBy   int64        `json:"created_by"`
	Members     []BandMember `json:"members"`
	CreatedAt   time.Time    `json:"created_at"`
}

type RehearsalStatus string

const (
	RehearsalScheduled   RehearsalStatus = "scheduled"
	RehearsalCanceled    RehearsalStatus = "canceled"
	RehearsalCompleted   RehearsalStatus = "completed"
	RehearsalRescheduled RehearsalStatus = "rescheduled"
)

type Rehearsal struct {
	ID        int64           `json:"id"`
	BandID    int64           `json:"band_id"`
	VenueID   *int64          `json:"venue_id,omitempty"`
	Title     string          `json:"title"`
	Notes     string          `json:"notes,omitempty"`
	Status    RehearsalStatus `json:"status"`
	StartTime time.Time       `json:"start_time"`
	EndTime   time.Time       `json:"end_time"`
	CreatedBy int64           `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

type Venue struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// Message is an email job published to the queue for mail_sender.
type Message struct {
	Email   string `json:"to"`
	Subject string `json:"subject"`
	Link    string `json:"link"`
	Body    string `json:"body"`
}
