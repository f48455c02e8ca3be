package export

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/AdielsonMedeiros/POC-PDF/internal/entity"
	"github.com/AdielsonMedeiros/POC-PDF/internal/repository"
)

func strPtr(s string) *string { return &s }

func TestExportTemplatesXLSX(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()

	_, err := repo.Save(ctx, "fp-contract", []entity.FieldMapping{
		{FieldType: "NOME", Label: "Nome", OriginalValue: "Joao Silva", Left: 100, Top: 200, Right: 162, Bottom: 212},
		{FieldType: "VALOR", Label: "Valor", OriginalValue: "R$ 1.500,00", Left: 100, Top: 230, Right: 170, Bottom: 242},
	}, strPtr("Contrato"), strPtr("Contrato de prestacao"))
	require.NoError(t, err)

	_, err = repo.Save(ctx, "fp-empty", nil, nil, nil)
	require.NoError(t, err)

	svc := NewService(repo, nil)
	data, err := svc.ExportTemplatesXLSX(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Templates")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Fingerprint", "Name", "Description", "Fields", "Created At", "Updated At"}, rows[0])

	byFingerprint := map[string][]string{}
	for _, row := range rows[1:] {
		byFingerprint[row[0]] = row
	}
	contract := byFingerprint["fp-contract"]
	require.NotNil(t, contract)
	assert.Equal(t, "Contrato", contract[1])
	assert.Equal(t, "Contrato de prestacao", contract[2])
	assert.Equal(t, "2", contract[3])

	empty := byFingerprint["fp-empty"]
	require.NotNil(t, empty)
	assert.Equal(t, "0", empty[3])

	mappings, err := f.GetRows("Mappings")
	require.NoError(t, err)
	require.Len(t, mappings, 3)
	assert.Equal(t, []string{"Fingerprint", "Field Type", "Label", "Original Value", "Left", "Top", "Right", "Bottom"}, mappings[0])
	assert.Equal(t, "fp-contract", mappings[1][0])
	assert.Equal(t, "NOME", mappings[1][1])
	assert.Equal(t, "Joao Silva", mappings[1][3])
	assert.Equal(t, "100", mappings[1][4])
}

func TestExportEmptyCatalog(t *testing.T) {
	svc := NewService(repository.NewMemoryRepository(), nil)
	data, err := svc.ExportTemplatesXLSX(context.Background())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Templates")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotContains(t, f.GetSheetList(), "Sheet1")
}
