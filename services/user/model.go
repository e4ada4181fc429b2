package user

import (
	"strconv"
	"time"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStaff
}

type User struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement:false"`
	Username     string    `gorm:"column:username;type:varchar(64);uniqueIndex;not null"`
	Name         string    `gorm:"column:name;type:varchar(200)"`
	Email        string    `gorm:"column:email;type:varchar(255)"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	Role         Role      `gorm:"column:role;type:varchar(20);not null;default:'staff'"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (User) TableName() string {
	return "users"
}

type UserJSON struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) ToJSON() UserJSON {
	return UserJSON{
		ID:        strconv.FormatInt(u.ID, 10),
		Username:  u.Username,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}
