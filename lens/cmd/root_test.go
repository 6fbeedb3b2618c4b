package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd(t *testing.T) {
	t.Parallel()

	t.Run("render", func(t *testing.T) {
		t.Parallel()

		in := writeInputs(t)
		root, err := NewRootCmd()
		require.NoError(t, err)
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetArgs([]string{"render", filepath.Join(in, "calc.yaml")})
		require.NoError(t, root.Execute())

		assert.Contains(t, out.String(), "package demo;")
		assert.Contains(t, out.String(), "class Calc {")
		assert.NotContains(t, out.String(), "GhostWriter")
	})

	t.Run("instrument", func(t *testing.T) {
		t.Parallel()

		in := writeInputs(t)
		out := t.TempDir()
		root, err := NewRootCmd()
		require.NoError(t, err)
		root.SetOut(&bytes.Buffer{})
		root.SetArgs([]string{
			"instrument", "--trace-value-change=false",
			"-o", out, "-f", FormatJava, filepath.Join(in, "calc.yaml"),
		})
		require.NoError(t, root.Execute())

		data, err := os.ReadFile(filepath.Join(out, "calc.java"))
		require.NoError(t, err)
		assert.Contains(t, string(data), `io.ghostwriter.GhostWriter.entering(this, "answer");`)
		assert.NotContains(t, string(data), "valueChange")
	})

	t.Run("missing_args", func(t *testing.T) {
		t.Parallel()

		root, err := NewRootCmd()
		require.NoError(t, err)
		root.SetOut(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})
		root.SetArgs([]string{"instrument"})
		assert.Error(t, root.Execute())
	})

	t.Run("bad_config_file", func(t *testing.T) {
		t.Parallel()

		root, err := NewRootCmd()
		require.NoError(t, err)
		root.SetOut(&bytes.Buffer{})
		root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml"), "render", writeInputs(t)})
		assert.ErrorContains(t, root.Execute(), "read config")
	})
}
