package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/pmic/config"
)

func board(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "board.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestBoardConfig(t *testing.T) {
	cfg, err := boardConfig(board(t, "adapter: mcp2221\nvariant: axp192\naddress: 0x34\n"))
	require.NoError(t, err)
	assert.Equal(t, config.AdapterMCP2221, cfg.Adapter)
	assert.Equal(t, config.VariantAXP192, cfg.Variant)
}

func TestBoardConfig_Errors(t *testing.T) {
	_, err := boardConfig("")
	assert.ErrorIs(t, err, errNoBoard)

	_, err = boardConfig(board(t, "adapter: sim\n"))
	assert.ErrorIs(t, err, errNoBoard)

	_, err = boardConfig(board(t, "address: 0x80\n"))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = boardConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestHardwareTestCmd_NeedsBoard(t *testing.T) {
	t.Setenv(configEnv, "")
	cmd := HardwareTestCmd()
	cmd.SetArgs([]string{})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	assert.ErrorIs(t, cmd.Execute(), errNoBoard)
}
