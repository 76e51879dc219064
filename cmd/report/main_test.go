package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const leadsCSV = "id,customer,created_at,cpf,phone,agreement_full,channel,campaign,owner,product,team,stage,loss_reason,paid_at,projected_commission,paid_amount\n" +
	"1,Ana,2025-03-01,111,999,SPPREV,RCS,spprev_marco,Joao,Novo,T,LEAD,,,,\n" +
	"2,Bia,2025-03-01,222,888,SPPREV,RCS,spprev_marco,Joao,Novo,T,PAGO,,,,\n" +
	"3,Caio,2025-03-01,333,777,SPPREV,Tallos,spprev_marco,Rui,Novo,T,LEAD,,,,\n"

const dispatchesCSV = "data;convenio;categoria;quantidade;canal;investimento;mql;pagos;receita\n" +
	"01/03/2025;SPPREV;NOVO;8;RCS;;;;\n"

func writeFiles(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	l := filepath.Join(dir, "hubspot.csv")
	d := filepath.Join(dir, "disparos.csv")
	require.NoError(t, os.WriteFile(l, []byte(leadsCSV), 0o644))
	require.NoError(t, os.WriteFile(d, []byte(dispatchesCSV), 0o644))
	return l, d
}

func TestRunJSON(t *testing.T) {
	l, d := writeFiles(t)
	var out, errOut bytes.Buffer
	require.NoError(t, run([]string{"-view", "dispatch_lead_join", d, l}, &out, &errOut))

	var rep struct {
		Join []struct {
			Agreement string   `json:"agreement"`
			Quantity  int      `json:"quantity"`
			Leads     int      `json:"leads"`
			Ratio     *float64 `json:"ratio"`
		} `json:"dispatch_lead_join"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &rep))
	require.Len(t, rep.Join, 1)
	assert.Equal(t, 8, rep.Join[0].Quantity)
	assert.Equal(t, 2, rep.Join[0].Leads)
	require.NotNil(t, rep.Join[0].Ratio)
	assert.Equal(t, 25.0, *rep.Join[0].Ratio)
}

func TestRunXLSX(t *testing.T) {
	l, d := writeFiles(t)
	target := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, run([]string{"-format", "xlsx", "-out", target, l, d}, &bytes.Buffer{}, &bytes.Buffer{}))

	f, err := excelize.OpenFile(target)
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, f.GetSheetList(), 5)
}

func TestRunErrors(t *testing.T) {
	l, d := writeFiles(t)

	err := run([]string{l}, &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))

	err = run([]string{"-view", "nope", l, d}, &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))

	bad := filepath.Join(t.TempDir(), "disparos_bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("data;convenio\n01/03/2025;X\n"), 0o644))
	err = run([]string{l, bad}, &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, 3, exitCode(err))
}
