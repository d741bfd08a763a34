package services

import (
	"log"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CanonicalField is the stable internal name of a data attribute,
// regardless of how the source file spells its header.
type CanonicalField string

const (
	FieldCPF              CanonicalField = "cpf"
	FieldBenefitNumber    CanonicalField = "benefit_number"
	FieldName             CanonicalField = "name"
	FieldBirthDate        CanonicalField = "birth_date"
	FieldBenefitStart     CanonicalField = "benefit_start"
	FieldBenefitKind      CanonicalField = "benefit_kind"
	FieldBenefitValue     CanonicalField = "benefit_value"
	FieldMarginValue      CanonicalField = "margin_value"
	FieldBankCode         CanonicalField = "bank_code"
	FieldAgency           CanonicalField = "agency"
	FieldAccount          CanonicalField = "account"
	FieldPhone            CanonicalField = "phone"
	FieldCity             CanonicalField = "city"
	FieldState            CanonicalField = "state"
	FieldContractNumber   CanonicalField = "contract_number"
	FieldLenderCode       CanonicalField = "lender_code"
	FieldInstallmentValue CanonicalField = "installment_value"
	FieldInstallments     CanonicalField = "installments"
	FieldContractValue    CanonicalField = "contract_value"
	FieldStartDate        CanonicalField = "start_date"
	FieldEndDate          CanonicalField = "end_date"
)

// fieldAliases lists the known header spellings per canonical field, as
// they appear in lender and payroll exports. Spellings are normalized at
// load time, so accents, case and separators in this table are free-form.
var fieldAliases = map[CanonicalField][]string{
	FieldCPF:              {"CPF", "NR CPF", "NU CPF", "CPF CLIENTE", "CPF DO CLIENTE", "DOCUMENTO"},
	FieldBenefitNumber:    {"NB", "BENEFICIO", "NR BENEFICIO", "NUMERO BENEFICIO", "Número do Benefício", "MATRICULA"},
	FieldName:             {"NOME", "NOME CLIENTE", "NOME DO CLIENTE", "CLIENTE"},
	FieldBirthDate:        {"DT NASCIMENTO", "DATA NASCIMENTO", "DATA DE NASCIMENTO", "NASCIMENTO", "DT NASC"},
	FieldBenefitStart:     {"DDB", "DIB", "DATA INICIO BENEFICIO", "INICIO BENEFICIO"},
	FieldBenefitKind:      {"ESPECIE", "Espécie", "CD ESPECIE", "COD ESPECIE"},
	FieldBenefitValue:     {"VL BENEFICIO", "VALOR BENEFICIO", "Valor do Benefício", "RENDA"},
	FieldMarginValue:      {"MARGEM", "VL MARGEM", "MARGEM DISPONIVEL", "MR"},
	FieldBankCode:         {"BANCO", "CD BANCO", "COD BANCO", "BANCO PAGAMENTO"},
	FieldAgency:           {"AGENCIA", "Agência", "AG PAGAMENTO"},
	FieldAccount:          {"CONTA", "CONTA CORRENTE", "MEIO PAGAMENTO"},
	FieldPhone:            {"TELEFONE", "FONE", "CELULAR"},
	FieldCity:             {"MUNICIPIO", "Município", "CIDADE"},
	FieldState:            {"UF", "ESTADO"},
	FieldContractNumber:   {"CONTRATO", "NR CONTRATO", "N CONTRATO", "NUMERO CONTRATO", "Número do Contrato"},
	FieldLenderCode:       {"BANCO EMPRESTIMO", "CD BANCO EMPRESTIMO", "COD BANCO EMPRESTIMO", "BANCO CONTRATO"},
	FieldInstallmentValue: {"VL PARCELA", "VALOR PARCELA", "Valor da Parcela", "PARCELA"},
	FieldInstallments:     {"PRAZO", "QT PARCELAS", "QTD PARCELAS", "PARCELAS"},
	FieldContractValue:    {"VL EMPRESTIMO", "VALOR EMPRESTIMO", "VL CONTRATO", "VALOR CONTRATO"},
	FieldStartDate:        {"INICIO DESCONTO", "DT INICIO DESCONTO", "DATA INICIO DESCONTO", "COMPETENCIA INICIO DESCONTO"},
	FieldEndDate:          {"FIM DESCONTO", "DT FIM DESCONTO", "DATA FIM DESCONTO", "COMPETENCIA FIM DESCONTO"},
}

// headerAliases is fieldAliases inverted and normalized, built once.
var headerAliases = func() map[string]CanonicalField {
	m := make(map[string]CanonicalField)
	for field, spellings := range fieldAliases {
		for _, s := range spellings {
			m[NormalizeHeader(s)] = field
		}
	}
	return m
}()

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeHeader reduces a header cell to its canonical lookup form:
// upper-cased, diacritics stripped, every non-alphanumeric removed.
func NormalizeHeader(h string) string {
	h = strings.TrimSpace(h)
	if folded, _, err := transform.String(stripMarks, h); err == nil {
		h = folded
	}
	var b strings.Builder
	b.Grow(len(h))
	for _, r := range strings.ToUpper(h) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ColumnMapping is the immutable mapping from source column index to
// canonical field, built once from the header row and shared read-only
// by every later stage of a run.
type ColumnMapping struct {
	byIndex    map[int]CanonicalField
	byField    map[CanonicalField]int
	RawHeaders []string
}

// MapColumns resolves the header row against the alias table. Columns
// with no known alias are dropped silently; files routinely carry extra
// informational columns. If two columns spell the same canonical field,
// the later one wins and a diagnostic is logged.
func MapColumns(header []string) *ColumnMapping {
	m := &ColumnMapping{
		byIndex:    make(map[int]CanonicalField, len(header)),
		byField:    make(map[CanonicalField]int, len(header)),
		RawHeaders: header,
	}
	for i, h := range header {
		field, ok := headerAliases[NormalizeHeader(h)]
		if !ok {
			continue
		}
		if prev, dup := m.byField[field]; dup {
			log.Printf("[base-import] header columns %d (%q) and %d (%q) both map to %s; keeping the later",
				prev+1, header[prev], i+1, h, field)
			delete(m.byIndex, prev)
		}
		m.byIndex[i] = field
		m.byField[field] = i
	}
	return m
}

// Value returns the trimmed cell for a canonical field, or "" when the
// field is unmapped or the row is too short.
func (m *ColumnMapping) Value(cells []string, field CanonicalField) string {
	idx, ok := m.byField[field]
	if !ok || idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}

// HasField reports whether the source file carries a canonical field.
func (m *ColumnMapping) HasField(field CanonicalField) bool {
	_, ok := m.byField[field]
	return ok
}

// MappedCount returns how many source columns were recognized.
func (m *ColumnMapping) MappedCount() int { return len(m.byIndex) }
