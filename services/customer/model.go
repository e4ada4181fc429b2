package customer

import (
	"strconv"
	"time"
)

type Customer struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement:false"`
	First     string    `gorm:"column:first;type:varchar(100);not null"`
	Last      string    `gorm:"column:last;type:varchar(100);not null"`
	Email     string    `gorm:"column:email;type:varchar(255);uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Customer) TableName() string {
	return "customers"
}

func (c *Customer) FullName() string {
	if c.Last == "" {
		return c.First
	}
	return c.First + " " + c.Last
}

type CustomerJSON struct {
	ID        string    `json:"id"`
	First     string    `json:"first"`
	Last      string    `json:"last"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Customer) ToJSON() CustomerJSON {
	return CustomerJSON{
		ID:        strconv.FormatInt(c.ID, 10),
		First:     c.First,
		Last:      c.Last,
		Email:     c.Email,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
