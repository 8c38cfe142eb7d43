package cli

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binderveil/binderveil/internal/blocklist"
	"github.com/binderveil/binderveil/internal/companion"
	"github.com/binderveil/binderveil/internal/parcel"
)

type testEnv struct {
	dir      string
	config   string
	primary  string
	mirror   string
	socket   string
	restarts int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:     dir,
		config:  filepath.Join(dir, "config.yml"),
		primary: filepath.Join(dir, "sdcard", "detach.bin"),
		mirror:  filepath.Join(dir, "module", "detach.bin"),
		socket:  filepath.Join(dir, "c.sock"),
	}
	require.NoError(t, os.WriteFile(env.config, []byte(`
blocklist:
  path: "`+env.primary+`"
  mirror_path: "`+env.mirror+`"
parcel:
  shape: "3"
companion:
  socket_path: "`+env.socket+`"
logging:
  level: error
`), 0o600))

	origInstalled, origRestart := installedPackages, restartStore
	t.Cleanup(func() { installedPackages, restartStore = origInstalled, origRestart })
	installedPackages = func(context.Context) ([]string, error) {
		return []string{"com.whatsapp", "org.telegram.messenger", "com.example.hidden"}, nil
	}
	restartStore = func() ([]int, error) {
		env.restarts++
		return []int{4242}, nil
	}
	return env
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRoot("test")
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append(args, "--config", e.config))
	err := cmd.Execute()
	return stdout.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var ee *ExitError
	require.True(t, errors.As(err, &ee), "expected ExitError, got %v", err)
	return ee.Code()
}

func TestListEmpty(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.run(t, "list")
	require.NoError(t, err)
	assert.Equal(t, "blocklist empty\n", out)
}

func TestAddListRemove(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "add", "com.whatsapp")
	require.NoError(t, err)
	assert.Contains(t, out, "hidden: com.whatsapp")
	assert.Contains(t, out, "restarted store")
	assert.Equal(t, 1, env.restarts)
	assert.FileExists(t, env.mirror)

	out, err = env.run(t, "add", "com.whatsapp")
	require.NoError(t, err)
	assert.Contains(t, out, "already hidden")
	assert.Equal(t, 1, env.restarts)

	_, err = env.run(t, "add", "org.telegram.messenger", "--no-restart")
	require.NoError(t, err)
	assert.Equal(t, 1, env.restarts)

	out, err = env.run(t, "list")
	require.NoError(t, err)
	assert.Equal(t, "com.whatsapp\norg.telegram.messenger\n", out)

	out, err = env.run(t, "remove", "com.whatsapp")
	require.NoError(t, err)
	assert.Contains(t, out, "re-attached: com.whatsapp")

	_, err = env.run(t, "remove", "com.whatsapp")
	assert.Equal(t, 1, exitCode(t, err))
}

func TestAddUnknownPackageSuggests(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "add", "com.whatsap")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(t, err))
	assert.Contains(t, err.Error(), "did you mean com.whatsapp?")
	assert.NoFileExists(t, env.primary)

	_, err = env.run(t, "add", "com.whatsap", "--force")
	require.NoError(t, err)
	assert.FileExists(t, env.primary)
}

func TestAddWhenPackageManagerFails(t *testing.T) {
	env := newTestEnv(t)
	installedPackages = func(context.Context) ([]string, error) { return nil, errors.New("pm not found") }

	_, err := env.run(t, "add", "com.example.hidden")
	require.NoError(t, err)
	assert.FileExists(t, env.primary)
}

func TestReset(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "reset")
	require.NoError(t, err)
	assert.Equal(t, "already empty\n", out)
	assert.Zero(t, env.restarts)

	_, err = env.run(t, "add", "com.whatsapp", "--no-restart")
	require.NoError(t, err)
	out, err = env.run(t, "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "reset\n")
	assert.Equal(t, 1, env.restarts)
	assert.NoFileExists(t, env.primary)
	assert.NoFileExists(t, env.mirror)
}

func TestEncode(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "encode", "com")
	require.NoError(t, err)
	assert.Equal(t, "63006f006d\n", out)

	out, err = env.run(t, "encode", "com", "--convention", "char-count")
	require.NoError(t, err)
	assert.Equal(t, "636f6d\n", out)

	out, err = env.run(t, "encode", "com", "--format", "entry")
	require.NoError(t, err)
	assert.Equal(t, "0563006f006d\n", out)

	out, err = env.run(t, "encode", "com", "--format", "c", "--var", "pkg")
	require.NoError(t, err)
	assert.Equal(t, "char pkg[] = {\n    'c', 0x0, 'o', 0x0, 'm'};\nsize_t pkg_len = 5;\n", out)

	_, err = env.run(t, "encode", "com", "--format", "base64")
	assert.Error(t, err)
}

func TestFormatCArrayWraps(t *testing.T) {
	b := bytes.Repeat([]byte{'a'}, 16)
	got := formatCArray("x", b)
	assert.Contains(t, got, "\n    'a'};\n")
	assert.Contains(t, got, "size_t x_len = 16;")
}

func TestInspect(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "add", "com.example.hidden", "--no-restart")
	require.NoError(t, err)

	hidden := hex.EncodeToString(parcel.PackageQuery(parcel.ShapeThreeWord, "com.example.hidden"))
	out, err := env.run(t, "inspect", hidden, "--code", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "envelope: valid\n")
	assert.Contains(t, out, "outcome:  redacted")
	assert.Contains(t, out, `argument: "com.example.hidden" at offset 92`)
	assert.Contains(t, out, "entry:    0 (com.example.hidden)")

	_, err = env.run(t, "inspect", hidden, "--exit-status")
	assert.Equal(t, 3, exitCode(t, err))

	allowed := hex.EncodeToString(parcel.PackageQuery(parcel.ShapeThreeWord, "com.example.other"))
	out, err = env.run(t, "inspect", allowed, "--exit-status")
	require.NoError(t, err)
	assert.Contains(t, out, "outcome:  allowed")

	out, err = env.run(t, "inspect", hidden, "--shape", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "outcome:  passthrough")
}

func TestEnvelopeState(t *testing.T) {
	data := parcel.PackageQuery(parcel.ShapeThreeWord, "com.example.hidden")
	v := parcel.Validator{Shape: parcel.ShapeThreeWord, Opcodes: map[uint32]struct{}{3: {}}}

	assert.Equal(t, "valid", envelopeState(v, 3, data))
	assert.Equal(t, "valid (code not watched)", envelopeState(v, 4, data))
	assert.Equal(t, "invalid", envelopeState(v, 3, data[:8]))
}

func TestInspectReadsFile(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "add", "com.example.hidden", "--no-restart")
	require.NoError(t, err)

	dump := filepath.Join(env.dir, "dump.hex")
	raw := parcel.PackageQuery(parcel.ShapeThreeWord, "com.example.hidden")
	require.NoError(t, os.WriteFile(dump, []byte(spacedHex(raw)), 0o600))

	out, err := env.run(t, "inspect", "--file", dump)
	require.NoError(t, err)
	assert.Contains(t, out, "outcome:  redacted")
}

func TestInspectRequiresInput(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "inspect")
	assert.Error(t, err)
}

func spacedHex(b []byte) string {
	var sb bytes.Buffer
	for i, c := range b {
		if i > 0 && i%16 == 0 {
			sb.WriteByte('\n')
		} else if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString("0x" + hex.EncodeToString([]byte{c}))
	}
	return sb.String()
}

func TestDecodeHexDump(t *testing.T) {
	b, err := decodeHexDump("0x01 02\n0X03  ff")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 0xff}, b)

	_, err = decodeHexDump("zz")
	assert.Error(t, err)
}

func TestServeServesBlocklist(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "add", "com.whatsapp", "--no-restart")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		cmd := NewRoot("test")
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"serve", "--config", env.config})
		done <- cmd.ExecuteContext(ctx)
	}()

	var data []byte
	require.Eventually(t, func() bool {
		fctx, fcancel := context.WithTimeout(context.Background(), time.Second)
		defer fcancel()
		data, err = companion.Fetch(fctx, env.socket, blocklist.MaxSize)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	bl, err := blocklist.Parse(data, blocklist.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"com.whatsapp"}, bl.Names())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestCompanionStatusUsesConfiguredCap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "detach.bin")
	sock := filepath.Join(dir, "s.sock")
	opts := blocklist.Options{MaxSize: 1024}

	var data []byte
	var err error
	for i := 0; i < 20; i++ {
		data, err = blocklist.AppendEntry(data, fmt.Sprintf("com.example.app%02d", i), opts)
		require.NoError(t, err)
	}
	require.Greater(t, len(data), blocklist.MaxSize)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	srv, err := companion.NewServer(companion.ServerConfig{Paths: []string{path}, SocketPath: sock, Blocklist: opts})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool {
		fctx, fcancel := context.WithTimeout(ctx, time.Second)
		defer fcancel()
		return companionStatus(fctx, sock, opts) == "serving 20 entries"
	}, 2*time.Second, 20*time.Millisecond)

	fctx, fcancel := context.WithTimeout(ctx, time.Second)
	defer fcancel()
	assert.Contains(t, companionStatus(fctx, sock, blocklist.Options{}), "unavailable")
}
