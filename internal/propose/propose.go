// Package propose turns document text into candidate variable fields.
// The real implementation asks an LLM; this package owns the contract,
// the response schema, and the lenient decoding of model output.
package propose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/AdielsonMedeiros/POC-PDF/internal/entity"
)

// FieldProposer identifies the variable fields of a document.
type FieldProposer interface {
	Propose(ctx context.Context, text string) ([]entity.CandidateField, error)
	Available() bool
}

// SystemPrompt instructs the model to find every variable field and
// answer with a bare JSON array.
const SystemPrompt = `Voce e um especialista em analise de documentos.
Sua tarefa e identificar TODOS os campos variaveis em um documento.

Campos variaveis sao dados que mudam de um documento para outro, como:
- Nomes de pessoas ou empresas
- Datas (qualquer formato)
- Valores monetarios
- Numeros de documentos (CPF, CNPJ, RG, etc.)
- Enderecos
- Telefones e emails
- Numeros de pedido, fatura, contrato
- Quantidades
- Percentuais
- Qualquer outro dado especifico que nao seja texto fixo do template

IMPORTANTE:
- Retorne APENAS um JSON valido, sem markdown ou explicacoes
- O JSON deve ser uma lista de objetos
- Cada objeto deve ter: "valor_original" (texto exato), "tipo" (categoria), "descricao" (label amigavel)
- Identifique o maximo de campos variaveis possiveis
- O "tipo" deve ser um identificador unico em MAIUSCULAS_COM_UNDERSCORE
- A "descricao" deve ser um texto legivel para exibir ao usuario

Exemplo de saida:
[
    {"valor_original": "Joao Silva", "tipo": "NOME_CLIENTE", "descricao": "Nome do Cliente"},
    {"valor_original": "123.456.789-00", "tipo": "CPF_CLIENTE", "descricao": "CPF do Cliente"},
    {"valor_original": "10/12/2024", "tipo": "DATA_EMISSAO", "descricao": "Data de Emissao"},
    {"valor_original": "R$ 1.500,00", "tipo": "VALOR_TOTAL", "descricao": "Valor Total"},
    {"valor_original": "NF-001234", "tipo": "NUMERO_NOTA", "descricao": "Numero da Nota"}
]`

// UserPrompt wraps the document text for the model.
func UserPrompt(text string) string {
	return "Analise este documento e identifique TODOS os campos variaveis:\n\n" + text
}

// BuildCandidateSchema returns the JSON-Schema a model response must
// satisfy once coerced into list form. Fields may be absent but never
// of the wrong type.
func BuildCandidateSchema() map[string]any {
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"valor_original": map[string]any{"type": "string"},
				"tipo":           map[string]any{"type": "string"},
				"descricao":      map[string]any{"type": "string"},
			},
		},
	}
}

var candidateSchema = mustCompile(BuildCandidateSchema())

func mustCompile(schemaMap map[string]any) *jsonschema.Schema {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		panic(err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("candidates.json", bytes.NewReader(b)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("candidates.json")
}

// CleanResponse strips the markdown code fences models like to wrap
// JSON in.
func CleanResponse(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimSpace(strings.TrimPrefix(s, "```"))
	s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	return s
}

// ParseCandidates decodes a model response into candidate fields. A
// single object is accepted as a one-element list. Entries without an
// original value are dropped; missing type or label fall back to
// defaults.
func ParseCandidates(raw string) ([]entity.CandidateField, error) {
	cleaned := CleanResponse(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("empty model response")
	}

	var v any
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}
	if obj, ok := v.(map[string]any); ok {
		v = []any{obj}
	}
	if err := candidateSchema.Validate(v); err != nil {
		return nil, fmt.Errorf("candidates do not match schema (%s): %w", truncate(cleaned, 200), err)
	}

	entries, _ := v.([]any)
	out := make([]entity.CandidateField, 0, len(entries))
	for _, e := range entries {
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		f := entity.CandidateField{
			OriginalValue: stringField(obj, "valor_original"),
			FieldType:     stringField(obj, "tipo"),
			Label:         stringField(obj, "descricao"),
		}
		f = f.Normalize()
		if strings.TrimSpace(f.OriginalValue) == "" {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
