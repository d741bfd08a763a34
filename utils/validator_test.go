package utils

import (
	"strings"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	if ok, msg := ValidatePassword("short"); ok || msg == "" {
		t.Errorf("short password accepted (ok=%v, msg=%q)", ok, msg)
	}
	if ok, _ := ValidatePassword("longenough"); !ok {
		t.Error("valid password rejected")
	}
}

func TestValidateEmail(t *testing.T) {
	if !ValidateEmail("operador@corretora.com.br") {
		t.Error("valid email rejected")
	}
	for _, email := range []string{"", "sem-arroba", "a@b"} {
		if ValidateEmail(email) {
			t.Errorf("invalid email accepted: %q", email)
		}
	}
}

func TestGenerateUniqueFilename(t *testing.T) {
	a := GenerateUniqueFilename("Base Clientes.XLSX")
	b := GenerateUniqueFilename("Base Clientes.XLSX")
	if a == b {
		t.Error("filenames collide")
	}
	if !strings.HasSuffix(a, ".xlsx") {
		t.Errorf("extension not kept: %q", a)
	}
}
