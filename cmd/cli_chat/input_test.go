package main

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func rdr(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func stubTerminal(t *testing.T, terminal bool, pw string, err error) {
	t.Helper()
	oldRead, oldIs := readPassword, isTerminal
	t.Cleanup(func() { readPassword, isTerminal = oldRead, oldIs })
	isTerminal = func(int) bool { return terminal }
	readPassword = func(int) ([]byte, error) { return []byte(pw), err }
}

func TestPromptLine(t *testing.T) {
	var out bytes.Buffer
	got, err := promptLine(rdr("  ana@x.com \n"), &out, "Email: ")
	require.NoError(t, err)
	require.Equal(t, "ana@x.com", got)
	require.Equal(t, "Email: ", out.String())
}

func TestPromptLine_EOF(t *testing.T) {
	var out bytes.Buffer
	got, err := promptLine(rdr("ultima"), &out, "")
	require.NoError(t, err)
	require.Equal(t, "ultima", got)

	_, err = promptLine(rdr(""), &out, "")
	require.Error(t, err)
}

func TestPromptPassword_Terminal(t *testing.T) {
	stubTerminal(t, true, "secret1", nil)
	var out bytes.Buffer
	got, err := promptPassword(rdr("no se usa\n"), &out, "Contraseña: ")
	require.NoError(t, err)
	require.Equal(t, "secret1", got)
	require.Equal(t, "Contraseña: \n", out.String())
}

func TestPromptPassword_TerminalError(t *testing.T) {
	stubTerminal(t, true, "", errors.New("boom"))
	var out bytes.Buffer
	_, err := promptPassword(rdr(""), &out, "Contraseña: ")
	require.Error(t, err)
}

func TestPromptPassword_RedirectedStdin(t *testing.T) {
	stubTerminal(t, false, "ignored", nil)
	var out bytes.Buffer
	got, err := promptPassword(rdr("piped\n"), &out, "Contraseña: ")
	require.NoError(t, err)
	require.Equal(t, "piped", got)
}
