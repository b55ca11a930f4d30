package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "blastbot/pkg/logx"
)

func TestLoadTrimsAndSkipsBlankLines(t *testing.T) {
	dir := t.TempDir()
	raid := filepath.Join(dir, "raid.txt")
	require.NoError(t, os.WriteFile(raid, []byte("  one {target}\n\n two \n\t\n"), 0o600))

	c, err := Load(map[Category]string{Raid: raid}, logx.Nop())
	require.NoError(t, err)

	assert.Equal(t, 2, c.Len(Raid))
	for i := 0; i < 20; i++ {
		assert.Contains(t, []string{"one {target}", "two"}, c.Random(Raid))
	}
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n  \n"), 0o600))

	c, err := Load(map[Category]string{
		Raid:     filepath.Join(dir, "missing.txt"),
		Romantic: empty,
	}, logx.Nop())
	require.NoError(t, err)

	assert.Equal(t, defaults[Raid][0], c.Random(Raid))
	assert.Equal(t, defaults[Romantic][0], c.Random(Romantic))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "hey @bob!", Format("hey {target}!", "@bob"))
	assert.Equal(t, "@bob @bob", Format("{target} {target}", "@bob"))
	assert.Equal(t, "@bob good morning", Format("good morning", "@bob"))
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	raid := filepath.Join(dir, "raid.txt")
	require.NoError(t, os.WriteFile(raid, []byte("old\n"), 0o600))

	c, err := Load(map[Category]string{Raid: raid}, logx.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(raid, []byte("new\n"), 0o600))

	assert.Eventually(t, func() bool { return c.Random(Raid) == "new" }, 3*time.Second, 20*time.Millisecond)
}
