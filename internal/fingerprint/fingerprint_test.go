package fingerprint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExactDeterminism(t *testing.T) {
	text := "NOTA FISCAL Cliente: Joao Silva Valor Total: R$ 1.500,00"
	assert.Equal(t, Exact(text), Exact(text))
	assert.Len(t, Exact(text), 16)
}

func TestExactDigitInsensitivity(t *testing.T) {
	t1 := "Invoice Total: R$ 1.500,00 dated 10/12/2024 order 001234"
	t2 := "Invoice Total: R$ 2.750,00 dated 25/01/2025 order 998877"
	assert.Equal(t, Exact(t1), Exact(t2))
}

func TestExactDiffersOnStructure(t *testing.T) {
	t1 := "Contrato de Prestacao de Servicos"
	t2 := "Recibo de Pagamento"
	assert.NotEqual(t, Exact(t1), Exact(t2))
}

func TestExactFromBytes(t *testing.T) {
	fp := ExactFromBytes([]byte{0x25, 0x50, 0x44, 0x46})
	assert.Len(t, fp, 16)
	assert.Equal(t, fp, ExactFromBytes([]byte{0x25, 0x50, 0x44, 0x46}))
}

func TestSimilarityKeyPlaceholders(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"currency", "Total: R$ 1.500,00", "total: valor"},
		{"date", "Emitido em 10/12/2024", "emitido em data"},
		{"cpf", "CPF: 123.456.789-00", "cpf: cpf"},
		{"cnpj", "CNPJ: 12.345.678/0001-99", "cnpj: cnpj"},
		{"email", "Contato: joao.silva@example.com", "contato: email"},
		{"phone", "Tel: (11) 98765-4321", "tel: telefone"},
		{"plain number", "Pedido 42", "pedido num"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SimilarityKey(tc.in))
		})
	}
}

// Currency and date patterns contain digit runs; the pipeline must reduce
// them to their own placeholders, not to NUM.
func TestSimilarityKeyCompoundBeforeDigits(t *testing.T) {
	key := SimilarityKey("R$ 1.500,00 em 10/12/2024")
	assert.NotContains(t, key, "num")
	assert.Contains(t, key, "valor")
	assert.Contains(t, key, "data")
}

func TestSimilarityKeyCNPJBeforeCPF(t *testing.T) {
	key := SimilarityKey("Empresa CNPJ 12.345.678/0001-99")
	assert.Contains(t, key, "cnpj")
	assert.NotContains(t, key, "cpf")
}

// A date embedded in a longer digit run is consumed by the date rule first;
// the surrounding digits become NUM. This pins the documented behavior of the
// ordered pipeline for overlapping patterns.
func TestSimilarityKeyDateInsideDigitRun(t *testing.T) {
	key := SimilarityKey("ref 99910/12/202499")
	assert.Contains(t, key, "data")
}

func TestSimilarityKeyCollapsesWhitespaceAndCase(t *testing.T) {
	key := SimilarityKey("NOTA   FISCAL\n\tSerie  A")
	assert.Equal(t, "nota fiscal serie a", key)
}

func TestSimilarityKeyStableForSameTemplate(t *testing.T) {
	doc1 := "NOTA FISCAL\nCliente: Joao Silva\nCPF: 123.456.789-00\nData: 15/12/2024\nValor Total: R$ 1.500,00"
	doc2 := "NOTA FISCAL\nCliente: Joao Silva\nCPF: 987.654.321-00\nData: 20/01/2025\nValor Total: R$ 2.300,00"
	assert.Equal(t, SimilarityKey(doc1), SimilarityKey(doc2))
}

func TestStepsOrderIsNormative(t *testing.T) {
	var names []string
	for _, s := range Steps {
		names = append(names, s.Name)
	}
	require.Equal(t, []string{"currency", "date", "cnpj", "cpf", "email", "phone", "number"}, names)
	// plain digit stripping must be the last step
	assert.Equal(t, "number", Steps[len(Steps)-1].Name)
	assert.True(t, strings.HasPrefix(Steps[0].Pattern.String(), `R\$`))
}
