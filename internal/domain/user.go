package domain

import "time"

// PresenceWindow es la ventana de actividad dentro de la cual un usuario se considera en linea.
const PresenceWindow = 5 * time.Minute

type User struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Secret    string     `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"-"`
}

// PublicUser es la vista del usuario expuesta por la API (sin secretos).
type PublicUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsOnline  bool      `json:"isOnline"`
	LastSeen  time.Time `json:"lastSeen"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public construye la vista publica calculando la presencia respecto a now.
func (u User) Public(now time.Time) PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		IsOnline:  IsOnline(u.UpdatedAt, now),
		LastSeen:  u.UpdatedAt,
		CreatedAt: u.CreatedAt,
	}
}

// IsOnline aplica la heuristica de presencia: actividad reciente, no una conexion real.
func IsOnline(lastSeen, now time.Time) bool {
	if lastSeen.IsZero() {
		return false
	}
	return now.Sub(lastSeen) < PresenceWindow
}
