package models

import "time"

// Client represents the clients table. Rows are keyed by the cleaned
// 11-digit CPF and only ever written through natural-key upserts, so a
// re-imported file can never duplicate a client.
type Client struct {
	ClientID      uint       `gorm:"primaryKey;autoIncrement;column:client_id" json:"client_id"`
	CPF           string     `gorm:"column:cpf;type:char(11);uniqueIndex;not null" json:"cpf"`
	BenefitNumber string     `gorm:"column:benefit_number;type:varchar(20)" json:"benefit_number"`
	Name          *string    `gorm:"column:name;type:varchar(255)" json:"name,omitempty"`
	BirthDate     *time.Time `gorm:"column:birth_date" json:"birth_date,omitempty"`
	BenefitStart  *time.Time `gorm:"column:benefit_start" json:"benefit_start,omitempty"`
	BenefitKind   *string    `gorm:"column:benefit_kind;type:varchar(10)" json:"benefit_kind,omitempty"`
	BenefitValue  *float64   `gorm:"column:benefit_value" json:"benefit_value,omitempty"`
	MarginValue   *float64   `gorm:"column:margin_value" json:"margin_value,omitempty"`
	BankCode      *string    `gorm:"column:bank_code;type:varchar(10)" json:"bank_code,omitempty"`
	Agency        *string    `gorm:"column:agency;type:varchar(20)" json:"agency,omitempty"`
	Account       *string    `gorm:"column:account;type:varchar(30)" json:"account,omitempty"`
	Phone         *string    `gorm:"column:phone;type:varchar(30)" json:"phone,omitempty"`
	City          *string    `gorm:"column:city;type:varchar(120)" json:"city,omitempty"`
	State         *string    `gorm:"column:state;type:char(2)" json:"state,omitempty"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Client) TableName() string { return "clients" }
