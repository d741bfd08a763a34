package services

import (
	"testing"

	"brokerage-backoffice-api/models"
)

func TestDedupBuffersFirstClientWins(t *testing.T) {
	b := NewDedupBuffers()

	first := &models.Client{CPF: "11111111111", BenefitNumber: "100"}
	second := &models.Client{CPF: "11111111111", BenefitNumber: "200"}

	if !b.AddClient(first) {
		t.Fatal("first insert rejected")
	}
	if b.AddClient(second) {
		t.Fatal("repeat insert accepted")
	}
	if b.ClientCount() != 1 {
		t.Fatalf("ClientCount = %d", b.ClientCount())
	}

	clients := b.Clients()
	if len(clients) != 1 || clients[0].BenefitNumber != "100" {
		t.Errorf("first-seen record was altered: %+v", clients[0])
	}
}

func TestDedupBuffersClientOrder(t *testing.T) {
	b := NewDedupBuffers()
	for _, cpf := range []string{"33333333333", "11111111111", "22222222222", "11111111111"} {
		b.AddClient(&models.Client{CPF: cpf, BenefitNumber: "1"})
	}

	clients := b.Clients()
	want := []string{"33333333333", "11111111111", "22222222222"}
	if len(clients) != len(want) {
		t.Fatalf("len = %d, want %d", len(clients), len(want))
	}
	for i, cpf := range want {
		if clients[i].CPF != cpf {
			t.Errorf("clients[%d].CPF = %q, want %q", i, clients[i].CPF, cpf)
		}
	}
}

func TestDedupBuffersContractCompositeKey(t *testing.T) {
	b := NewDedupBuffers()
	b.AddClient(&models.Client{CPF: "11111111111", BenefitNumber: "1"})
	b.AddClient(&models.Client{CPF: "22222222222", BenefitNumber: "2"})

	if !b.AddContract(&models.Contract{CPF: "11111111111", ContractNumber: "C1"}) {
		t.Fatal("first contract rejected")
	}
	if b.AddContract(&models.Contract{CPF: "11111111111", ContractNumber: "C1"}) {
		t.Fatal("duplicate contract accepted")
	}
	// Same number under another client is a different contract.
	if !b.AddContract(&models.Contract{CPF: "22222222222", ContractNumber: "C1"}) {
		t.Fatal("same number for another cpf rejected")
	}
	if !b.AddContract(&models.Contract{CPF: "11111111111", ContractNumber: "C2"}) {
		t.Fatal("second contract for same cpf rejected")
	}

	if b.ContractCount() != 3 {
		t.Fatalf("ContractCount = %d, want 3", b.ContractCount())
	}

	contracts := b.Contracts()
	if len(contracts) != 3 {
		t.Fatalf("len(Contracts) = %d", len(contracts))
	}
	// Grouped by client in first-seen order.
	if contracts[0].CPF != "11111111111" || contracts[1].CPF != "11111111111" || contracts[2].CPF != "22222222222" {
		t.Errorf("contracts not grouped by client: %v %v %v", contracts[0].CPF, contracts[1].CPF, contracts[2].CPF)
	}
}
