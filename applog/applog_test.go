package applog

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetGlobal restores the package's one-shot global state between test
// cases. Production code never calls this; Init is meant to be called
// exactly once per process.
func resetGlobal() {
	once = sync.Once{}
	mu.Lock()
	logger = nil
	anchor = time.Time{}
	colour = false
	limiter = nil
	writer = nil
	mu.Unlock()
}

func TestInitIsIdempotent(t *testing.T) {
	resetGlobal()
	defer resetGlobal()

	var buf1, buf2 bytes.Buffer
	Init(Config{Level: LevelDebug, Writer: &buf1})
	Init(Config{Level: LevelDebug, Writer: &buf2}) // ignored: first call wins

	Info("test", "hello")
	assert.Contains(t, buf1.String(), "hello")
	assert.Empty(t, buf2.String())
}

func TestLevelGating(t *testing.T) {
	resetGlobal()
	defer resetGlobal()

	var buf bytes.Buffer
	Init(Config{Level: LevelWarning, Writer: &buf})

	Debug("test", "should not appear")
	Info("test", "should not appear either")
	assert.Empty(t, buf.String())

	Warning("test", "should appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestFormatting(t *testing.T) {
	resetGlobal()
	defer resetGlobal()

	var buf bytes.Buffer
	Init(Config{Level: LevelDebug, Writer: &buf})

	Error("registry", "key %q missing (status %d)", "foo", 1)
	assert.Contains(t, buf.String(), `key "foo" missing (status 1)`)
	assert.Contains(t, buf.String(), `"module":"registry"`)
}

func TestBeforeInitIsNoop(t *testing.T) {
	resetGlobal()
	defer resetGlobal()

	assert.NotPanics(t, func() {
		Info("test", "no logger configured yet")
		Print("no writer configured yet")
	})
}

func TestPrintSerializesLines(t *testing.T) {
	resetGlobal()
	defer resetGlobal()

	var buf bytes.Buffer
	Init(Config{Level: LevelDebug, Writer: &buf})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			Print("line %d", i)
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 20)
}

func TestThrottling(t *testing.T) {
	resetGlobal()
	defer resetGlobal()

	var buf bytes.Buffer
	Init(Config{
		Level:  LevelDebug,
		Writer: &buf,
		Rates:  map[time.Duration]int{time.Minute: 1},
	})

	Warning("instruction", "key exists")
	Warning("instruction", "key exists")
	Warning("instruction", "key exists")

	n := strings.Count(buf.String(), "key exists")
	assert.Equal(t, 1, n)
}

func TestElapsedBeforeInit(t *testing.T) {
	resetGlobal()
	defer resetGlobal()

	require.Equal(t, time.Duration(0), Elapsed())
}
