package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })
	os.Args = append([]string{"daybook"}, args...)
}

func TestParseFlags_AllFlags(t *testing.T) {
	withArgs(t,
		"-a", "127.0.0.1:9090",
		"-i", "10",
		"-d", "/tmp/journal.db",
		"-u", "alice",
		"-t", "tok",
		"-z", "Europe/Riga",
		"-n", "writer",
		"-l", "debug",
		"-x", "ignored",
	)

	cfg := &Config{}
	require.NotPanics(t, func() { parseFlags(cfg) })

	want := &Config{
		ServerEndpointAddr:  "127.0.0.1:9090",
		OnlineCheckInterval: 10 * time.Second,
		DatabasePath:        "/tmp/journal.db",
		UserID:              "alice",
		AccessToken:         "tok",
		Timezone:            "Europe/Riga",
		Notifier:            "writer",
		LogLevel:            "debug",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFlags_KeepsValuesNotGiven(t *testing.T) {
	withArgs(t, "-u", "bob")

	cfg := &Config{}
	cfg.LoadDefaults()
	want := *cfg
	want.UserID = "bob"

	parseFlags(cfg)
	require.Equal(t, want, *cfg)
}

func TestParseFlags_BadIntervalPanics(t *testing.T) {
	withArgs(t, "-i", "abc")
	require.Panics(t, func() { parseFlags(&Config{}) })
}
