package canlog

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestStandardLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := &StandardLogger{
		Out:      log.New(&buf, "", 0),
		MinLevel: LevelWarning,
	}

	logger.Debugf("debug %d", 1)
	logger.Infof("info %d", 2)
	logger.Warnf("warn %d", 3)
	logger.Errorf("error %d", 4)
	logger.Criticalf("critical %d", 5)

	out := buf.String()
	if strings.Contains(out, "debug") || strings.Contains(out, "info") {
		t.Fatalf("below-threshold entries leaked: %q", out)
	}
	for _, want := range []string{"[WARN] warn 3", "[ERROR] error 4", "[CRITICAL] critical 5"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestLevelString(t *testing.T) {
	cases := map[Level]string{
		LevelDebug:    "DEBUG",
		LevelInfo:     "INFO",
		LevelWarning:  "WARN",
		LevelError:    "ERROR",
		LevelCritical: "CRITICAL",
	}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", level, got, want)
		}
	}
}
