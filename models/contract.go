package models

import "time"

// Contract represents the contracts table. The business key is the
// composite (cpf, contract_number); client_id is the store-assigned
// foreign key resolved after the client phase of an import.
type Contract struct {
	ContractID       uint       `gorm:"primaryKey;autoIncrement;column:contract_id" json:"contract_id"`
	ClientID         uint       `gorm:"column:client_id;not null;index" json:"client_id"`
	CPF              string     `gorm:"column:cpf;type:char(11);not null;uniqueIndex:uniq_contract_key" json:"cpf"`
	ContractNumber   string     `gorm:"column:contract_number;type:varchar(40);not null;uniqueIndex:uniq_contract_key" json:"contract_number"`
	LenderCode       string     `gorm:"column:lender_code;type:varchar(10);not null" json:"lender_code"`
	InstallmentValue *float64   `gorm:"column:installment_value" json:"installment_value,omitempty"`
	Installments     *float64   `gorm:"column:installments" json:"installments,omitempty"`
	ContractValue    *float64   `gorm:"column:contract_value" json:"contract_value,omitempty"`
	StartDate        *time.Time `gorm:"column:start_date" json:"start_date,omitempty"`
	EndDate          *time.Time `gorm:"column:end_date" json:"end_date,omitempty"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	// Relations
	Client Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`
}

func (Contract) TableName() string { return "contracts" }
