package services

import (
	"errors"

	"brokerage-backoffice-api/models"
)

// Row-level rejection reasons. These are user-facing: they end up in the
// capped error detail list of the run result.
var (
	ErrMissingIdentifier = errors.New("invalid or missing identifier")
	ErrMissingReference  = errors.New("missing reference number")
)

// NormalizeRow turns one raw row into a typed client record and, when
// the row also carries loan data, a contract record. Rules, in order:
// the CPF must clean to at least one digit, the benefit number must be
// non-blank, every other field is best-effort parse-or-null, and a
// contract exists only when contract number and lender code are both
// present.
func NormalizeRow(cells []string, m *ColumnMapping) (*models.Client, *models.Contract, error) {
	cpf := CleanIdentifier(m.Value(cells, FieldCPF))
	if cpf == "" {
		return nil, nil, ErrMissingIdentifier
	}

	benefit := m.Value(cells, FieldBenefitNumber)
	if benefit == "" {
		return nil, nil, ErrMissingReference
	}

	client := &models.Client{
		CPF:           cpf,
		BenefitNumber: benefit,
		Name:          OptionalString(m.Value(cells, FieldName)),
		BirthDate:     ParseDate(m.Value(cells, FieldBirthDate)),
		BenefitStart:  ParseDate(m.Value(cells, FieldBenefitStart)),
		BenefitKind:   OptionalString(m.Value(cells, FieldBenefitKind)),
		BenefitValue:  ParseDecimal(m.Value(cells, FieldBenefitValue)),
		MarginValue:   ParseDecimal(m.Value(cells, FieldMarginValue)),
		BankCode:      OptionalString(m.Value(cells, FieldBankCode)),
		Agency:        OptionalString(m.Value(cells, FieldAgency)),
		Account:       OptionalString(m.Value(cells, FieldAccount)),
		Phone:         OptionalString(m.Value(cells, FieldPhone)),
		City:          OptionalString(m.Value(cells, FieldCity)),
		State:         OptionalString(m.Value(cells, FieldState)),
	}

	number := m.Value(cells, FieldContractNumber)
	lender := m.Value(cells, FieldLenderCode)
	if number == "" || lender == "" {
		return client, nil, nil
	}

	contract := &models.Contract{
		CPF:              cpf,
		ContractNumber:   number,
		LenderCode:       lender,
		InstallmentValue: ParseDecimal(m.Value(cells, FieldInstallmentValue)),
		Installments:     ParseDecimal(m.Value(cells, FieldInstallments)),
		ContractValue:    ParseDecimal(m.Value(cells, FieldContractValue)),
		StartDate:        ParseDate(m.Value(cells, FieldStartDate)),
		EndDate:          ParseDate(m.Value(cells, FieldEndDate)),
	}
	return client, contract, nil
}
