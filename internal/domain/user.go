package domain

import (
	"slices"
	"time"
)

// Role determina qué rutas restringidas puede usar un usuario.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid indica si el rol pertenece al conjunto conocido.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// In devuelve true si el rol está entre los permitidos.
func (r Role) In(allowed ...Role) bool {
	return slices.Contains(allowed, r)
}

const DefaultPhoto = "default.jpg"

// User es el registro de credenciales e identidad. Los campos secretos nunca
// se serializan hacia clientes.
type User struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Email                string     `json:"email"`
	Photo                string     `json:"photo"`
	Role                 Role       `json:"-"`
	PasswordHash         string     `json:"-"`
	PasswordChangedAt    *time.Time `json:"-"`
	PasswordResetToken   string     `json:"-"`
	PasswordResetExpires *time.Time `json:"-"`
	Active               bool       `json:"-"`
	FollowersCount       int        `json:"followersCount"`
	FollowingCount       int        `json:"followingCount"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// ChangedPasswordAfter informa si la contraseña cambió después de que se
// emitiera un token con el iat dado (segundos unix).
func (u User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.Unix() < u.PasswordChangedAt.Unix()
}

// HasValidResetToken indica si el hash de reseteo sigue vigente en now.
func (u User) HasValidResetToken(now time.Time) bool {
	if u.PasswordResetToken == "" || u.PasswordResetExpires == nil {
		return false
	}
	return now.Before(*u.PasswordResetExpires)
}

// AdminUserView expone rol y estado para endpoints de administración.
type AdminUserView struct {
	User
	Role   Role `json:"role"`
	Active bool `json:"active"`
}

func (u User) AdminView() AdminUserView {
	return AdminUserView{User: u, Role: u.Role, Active: u.Active}
}

// UserSummary es la proyección mínima usada en búsquedas y como autor.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Photo string `json:"photo"`
}

// UserProfile combina un usuario con sus publicaciones.
type UserProfile struct {
	User  User       `json:"user"`
	Posts []PostView `json:"posts"`
}

// ProfileUpdate describe los cambios permitidos sobre un usuario. Los
// punteros nil no se modifican.
type ProfileUpdate struct {
	Name  *string
	Email *string
	Photo *string
	Role  *Role
}

// Empty indica que no hay nada que actualizar.
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Photo == nil && p.Role == nil
}
