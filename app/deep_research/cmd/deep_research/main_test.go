package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCMD()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheckCommand(t *testing.T) {
	cfg := writeFile(t, "config.yaml", "log:\n  level: error\n")
	profile := writeFile(t, "profile.yaml", "nombre_empresa: Café Andino\nubicacion: Cusco\nsector: cafeterías\n")

	out, err := execute(t, "check", "--config", cfg, "--profile", profile)
	require.NoError(t, err)
	assert.Contains(t, out, "Falta: productos_servicios_principales, descripcion_negocio")
	assert.Contains(t, out, "Completitud: 50%")
	assert.Contains(t, out, "desafios_principales, anos_operacion, num_empleados")
}

func TestPlanCommand(t *testing.T) {
	cfg := writeFile(t, "config.yaml", "log:\n  level: error\nresearch:\n  use_generator: false\n")
	profile := writeFile(t, "profile.yaml", `
nombre_empresa: Café Andino
ubicacion: Cusco
productos_servicios_principales: café de especialidad, postres
descripcion_negocio: Cafetería para turistas
`)

	out, err := execute(t, "plan", "--config", cfg, "--profile", profile, "--topic", "tendencias")
	require.NoError(t, err)
	assert.Contains(t, out, "Enfoque: tendencias")
	assert.Contains(t, out, "Origen: template")
	assert.Contains(t, out, "tendencias café de especialidad Cusco")
}

func TestRunCommand_RequiresProfileSource(t *testing.T) {
	cfg := writeFile(t, "config.yaml", "log:\n  level: error\n")
	_, err := execute(t, "run", "--config", cfg)
	assert.ErrorContains(t, err, "either --profile or --session is required")
}

func TestMissingConfig(t *testing.T) {
	_, err := execute(t, "check", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
