package export

import (
	"bytes"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type linha struct {
	Nome       string     `excel:"Assistido"`
	Data       time.Time  `excel:"Data,date"`
	Hora       string     `excel:"Hora,time"`
	Presente   bool       `excel:"Presente"`
	Percentual float64    `excel:"Frequência,percent"`
	Total      int        `excel:"Total"`
	Saida      *time.Time `excel:"Saída,date"`
	Interno    string     `excel:"-"`
	semTag     string
}

func open(t *testing.T, data []byte) *excelize.File {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestColumns(t *testing.T) {
	columns, err := Columns(reflect.TypeOf(&linha{}))
	require.NoError(t, err)
	var headers []string
	for _, c := range columns {
		headers = append(headers, c.Header)
	}
	assert.Equal(t, []string{"Assistido", "Data", "Hora", "Presente", "Frequência", "Total", "Saída"}, headers)
	assert.Equal(t, "percent", columns[4].Format)

	type ruim struct {
		A string `excel:"A,moeda"`
	}
	_, err = Columns(reflect.TypeOf(ruim{}))
	assert.Error(t, err)

	_, err = Columns(reflect.TypeOf(struct{ A string }{}))
	assert.Error(t, err)

	_, err = Columns(reflect.TypeOf(""))
	assert.Error(t, err)
}

func TestWorkbook(t *testing.T) {
	w := NewWorkbook()
	defer w.Close()

	rows := []linha{
		{Nome: "Ana Souza", Data: time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), Hora: "08:30", Presente: true, Percentual: 87.5, Total: 8, Interno: "x", semTag: "y"},
		{Nome: "Bruno", Data: time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC), Hora: "09:00", Presente: false, Total: 0},
	}
	require.NoError(t, w.AddSheet("Atendimentos", rows, "APAE Curitiba", "Período: 01/05/2024 a 31/05/2024"))
	require.NoError(t, w.AddSheet("Vazio", []*linha{}))

	data, err := w.Bytes()
	require.NoError(t, err)

	f := open(t, data)
	assert.Equal(t, []string{"Atendimentos", "Vazio"}, f.GetSheetList())

	got, err := f.GetRows("Atendimentos")
	require.NoError(t, err)
	require.Len(t, got, 6)
	assert.Equal(t, "APAE Curitiba", got[0][0])
	assert.Equal(t, "Período: 01/05/2024 a 31/05/2024", got[1][0])
	assert.Empty(t, got[2])
	assert.Equal(t, []string{"Assistido", "Data", "Hora", "Presente", "Frequência", "Total", "Saída"}, got[3])
	assert.Equal(t, "Ana Souza", got[4][0])
	assert.Equal(t, "08:30", got[4][2])
	assert.Equal(t, "Sim", got[4][3])
	assert.Equal(t, "8", got[4][5])
	assert.Equal(t, "Não", got[5][3])

	empty, err := f.GetRows("Vazio")
	require.NoError(t, err)
	require.Len(t, empty, 1)
	assert.Equal(t, "Assistido", empty[0][0])
}

func TestWorkbook_Errors(t *testing.T) {
	w := NewWorkbook()
	defer w.Close()
	_, err := w.Bytes()
	assert.Error(t, err, "no sheets")

	assert.Error(t, w.AddSheet("x", nil))
	assert.Error(t, w.AddSheet("x", linha{}))
	assert.Error(t, w.AddSheet("x", []string{"a"}))
}

func TestCellValue(t *testing.T) {
	v, text := cellValue(reflect.ValueOf(87.5), "percent")
	assert.Equal(t, 0.875, v)
	assert.Equal(t, "87.50%", text)

	var nilTime *time.Time
	v, _ = cellValue(reflect.ValueOf(nilTime), "date")
	assert.Nil(t, v)

	v, _ = cellValue(reflect.ValueOf([]int64{1, 3}), "")
	assert.Equal(t, "1, 3", v)
}
