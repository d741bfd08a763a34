package services

import (
	"brokerage-backoffice-api/models"
)

// DedupBuffers accumulates normalized records for a single run and
// collapses repeats: first occurrence of a client CPF or of a
// (cpf, contract number) pair wins, later ones are discarded. One run
// owns exactly one buffer set; it is drained once and thrown away.
type DedupBuffers struct {
	clients       map[string]*models.Client
	clientOrder   []string
	contracts     map[string][]*models.Contract
	seenContracts map[string]struct{}
	contractCount int
}

func NewDedupBuffers() *DedupBuffers {
	return &DedupBuffers{
		clients:       make(map[string]*models.Client),
		contracts:     make(map[string][]*models.Contract),
		seenContracts: make(map[string]struct{}),
	}
}

// AddClient inserts a client unless its CPF was already buffered.
// Returns false for repeats; the first-seen record is never altered.
func (b *DedupBuffers) AddClient(c *models.Client) bool {
	if _, ok := b.clients[c.CPF]; ok {
		return false
	}
	b.clients[c.CPF] = c
	b.clientOrder = append(b.clientOrder, c.CPF)
	return true
}

// AddContract inserts a contract unless its composite key was already
// seen. Returns false for repeats so the caller can count duplicates.
func (b *DedupBuffers) AddContract(ct *models.Contract) bool {
	key := ct.CPF + "|" + ct.ContractNumber
	if _, ok := b.seenContracts[key]; ok {
		return false
	}
	b.seenContracts[key] = struct{}{}
	b.contracts[ct.CPF] = append(b.contracts[ct.CPF], ct)
	b.contractCount++
	return true
}

// Clients drains the client buffer in first-seen order.
func (b *DedupBuffers) Clients() []*models.Client {
	out := make([]*models.Client, 0, len(b.clients))
	for _, cpf := range b.clientOrder {
		out = append(out, b.clients[cpf])
	}
	return out
}

// Contracts drains the contract buffer grouped by client, following the
// clients' first-seen order.
func (b *DedupBuffers) Contracts() []*models.Contract {
	out := make([]*models.Contract, 0, b.contractCount)
	for _, cpf := range b.clientOrder {
		out = append(out, b.contracts[cpf]...)
	}
	return out
}

func (b *DedupBuffers) ClientCount() int   { return len(b.clients) }
func (b *DedupBuffers) ContractCount() int { return b.contractCount }
